package schema

import (
	"strings"

	"github.com/calderglen/joinery-imports/internal/importer"
)

// PriceBook is the supplier price-book importer. Unlike contacts, a price
// list with a few bad lines should not hold up the rest of the book, so it
// submits the valid rows and leaves the broken ones visible in review.
var PriceBook = importer.Definition{
	Key:   "pricebook",
	Label: "Supplier Price Book",
	Fields: []importer.FieldSpec{
		{Field: "name", Label: "Name", Required: true},
		{Field: "description", Label: "Description"},
		{Field: "category", Label: "Category"},
		{Field: "unit", Label: "Unit"},
		{Field: "price", Label: "Price", Type: importer.FieldNumeric, Required: true},
		{Field: "status", Label: "Status", Type: importer.FieldEnum,
			EnumValues: []string{"active", "inactive"}, Normalizer: normalizeStatus},
	},
	Policy:    importer.SkipInvalid,
	EntityKey: "items",
	ActorKey:  "supplierId",
	Endpoint:  "/api/v1/pricebook/import",
	SampleRows: [][]string{
		{"Birch ply 18mm", "2440x1220 sheet", "Sheet Materials", "sheet", "54.20", "active"},
		{"Oak veneer MDF 19mm", "2440x1220 sheet", "Sheet Materials", "sheet", "78.50", "active"},
		{"Blum hinge 110", "Clip-top, soft close", "Hardware", "each", "4.15", "active"},
		{"Worktop oil 1L", "Hard wax oil, clear", "Finishes", "tin", "23.00", "inactive"},
	},
}

// normalizeStatus lower-cases the status cell so enum comparison and the
// submitted payload stay consistent regardless of how the supplier typed it.
func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func init() {
	importer.Register(PriceBook)
}
