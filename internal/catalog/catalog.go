// Package catalog holds the apprenticeship standards and their KSB definitions.
//
// The data ships embedded in the binary and is validated against the catalog
// JSON Schema when loaded. It is read-only at runtime; the db package seeds it
// into the ksb table so reports can join against it.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/jonathan/otj-helper/internal/schemas"
	"github.com/jonathan/otj-helper/internal/types"
	schemafiles "github.com/jonathan/otj-helper/schemas"
	"gopkg.in/yaml.v3"
)

//go:embed data/standards.yaml
var standardsYAML []byte

// Catalog is an immutable set of apprenticeship standards.
type Catalog struct {
	specs  []types.Spec
	byCode map[string]int
}

type document struct {
	Specs []types.Spec `yaml:"specs"`
}

// Load parses the embedded standards.
func Load() (*Catalog, error) {
	return Parse(standardsYAML)
}

// Parse decodes and validates a standards document.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse standards: %w", err)
	}
	if err := schemas.Validate(schemafiles.Catalog, raw); err != nil {
		return nil, fmt.Errorf("invalid standards data: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode standards: %w", err)
	}

	c := &Catalog{byCode: make(map[string]int, len(doc.Specs))}
	for _, spec := range doc.Specs {
		if _, dup := c.byCode[spec.Code]; dup {
			return nil, fmt.Errorf("duplicate standard %s", spec.Code)
		}
		seen := make(map[string]bool, len(spec.KSBs))
		for i := range spec.KSBs {
			k := &spec.KSBs[i]
			if seen[k.Code] {
				return nil, fmt.Errorf("duplicate KSB %s in %s", k.Code, spec.Code)
			}
			seen[k.Code] = true
			k.Spec = spec.Code
		}
		sort.Slice(spec.KSBs, func(i, j int) bool { return spec.KSBs[i].Code < spec.KSBs[j].Code })

		c.byCode[spec.Code] = len(c.specs)
		c.specs = append(c.specs, spec)
	}
	return c, nil
}

// Specs returns every standard without its KSB list, ordered by code.
func (c *Catalog) Specs() []types.Spec {
	out := make([]types.Spec, 0, len(c.specs))
	for _, s := range c.specs {
		s.KSBs = nil
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Spec looks up a standard by code.
func (c *Catalog) Spec(code string) (types.Spec, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return types.Spec{}, false
	}
	s := c.specs[i]
	s.KSBs = append([]types.KSB(nil), s.KSBs...)
	return s, true
}

// Has reports whether the standard exists.
func (c *Catalog) Has(code string) bool {
	_, ok := c.byCode[code]
	return ok
}

// KSBs returns every KSB across all standards.
func (c *Catalog) KSBs() []types.KSB {
	var out []types.KSB
	for _, s := range c.specs {
		out = append(out, s.KSBs...)
	}
	return out
}
