package schema

import (
	"github.com/calderglen/joinery-imports/internal/importer"
)

// Subcategories is the cabinet catalogue importer: price-book lines
// bucketed by subcategory for review before they land in the catalogue.
// Subcategory sheets are produced by our own template, so headers are
// matched exactly and the three core columns are mandatory at file level.
var Subcategories = importer.Definition{
	Key:   "subcategories",
	Label: "Cabinet Subcategories",
	Fields: []importer.FieldSpec{
		{Field: "code", Label: "Code", Required: true},
		{Field: "description", Label: "Description", Required: true},
		{Field: "subcategory", Label: "Subcategory", Required: true},
	},
	RequiredHeaders: []string{"Code", "Description", "Subcategory"},
	GroupField:      "subcategory",
	GroupLabel:      "subcategories",
	Policy:          importer.BlockOnError,
	EntityKey:       "subcategories",
	ActorKey:        "categoryId",
	Endpoint:        "/api/v1/categories/subcategories/import",
	SampleRows: [][]string{
		{"DR-100", "Shaker door, 720x450", "Doors"},
		{"DR-101", "Slab door, 720x600", "Doors"},
		{"DW-200", "Soft-close drawer box, 450mm", "Drawers"},
		{"PN-300", "End panel, 2400x600", "Panels"},
	},
}

func init() {
	importer.Register(Subcategories)
}
