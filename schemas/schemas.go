// Package schemas embeds the JSON Schemas for the catalog reference data and the gap report.
package schemas

import "embed"

// Schema file names.
const (
	Catalog   = "catalog.schema.json"
	GapReport = "gap_report.schema.json"
)

// FS holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS
