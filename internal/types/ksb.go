// Package types provides type definitions for the apprenticeship standards, activities and
// evidence shared across the otj-helper system.
package types

// Category groups KSBs into knowledge, skills and behaviours.
type Category string

// KSB categories in display order.
const (
	CategoryKnowledge Category = "knowledge"
	CategorySkill     Category = "skill"
	CategoryBehaviour Category = "behaviour"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryKnowledge, CategorySkill, CategoryBehaviour}

// Label returns the plural heading used when KSBs are grouped by category.
func (c Category) Label() string {
	switch c {
	case CategoryKnowledge:
		return "Knowledge"
	case CategorySkill:
		return "Skills"
	case CategoryBehaviour:
		return "Behaviours"
	default:
		return string(c)
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// KSBID identifies a KSB within its apprenticeship standard. Two standards may
// publish the same code, so the standard code is part of the identity.
type KSBID struct {
	Spec string `json:"spec_code"`
	Code string `json:"code"`
}

// String renders the identifier as "ST0787/K1".
func (id KSBID) String() string {
	return id.Spec + "/" + id.Code
}

// KSB is a knowledge, skill or behaviour defined by an apprenticeship standard.
type KSB struct {
	Spec        string   `json:"spec_code" yaml:"-" db:"spec_code"`
	Code        string   `json:"code" yaml:"code" db:"code"`
	Category    Category `json:"category" yaml:"category" db:"category"`
	Title       string   `json:"title" yaml:"title" db:"title"`
	Description string   `json:"description" yaml:"description" db:"description"`
}

// ID returns the composite identity of the KSB.
func (k KSB) ID() KSBID {
	return KSBID{Spec: k.Spec, Code: k.Code}
}

// Spec is an apprenticeship standard with its KSB set.
type Spec struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	Level       int    `json:"level" yaml:"level"`
	Description string `json:"description" yaml:"description"`
	Available   bool   `json:"available" yaml:"available"`
	KSBs        []KSB  `json:"ksbs,omitempty" yaml:"ksbs"`
}
