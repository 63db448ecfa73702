// Package schema holds the per-entity importer definitions. Importing the
// package registers every importer; both binaries blank-import it.
package schema

import (
	"github.com/calderglen/joinery-imports/internal/importer"
)

// Contacts is the client/supplier contact importer. Contact sheets arrive
// from customers with wildly inconsistent headers, so this is the one
// importer with the full heuristic rule table. The rules are ordered: a
// header containing "name" without "last" deliberately lands on First
// Name, so a column titled just "Name" (or "Full Name") maps there too.
// That is documented behavior, not a defect.
var Contacts = importer.Definition{
	Key:   "contacts",
	Label: "Contacts",
	Fields: []importer.FieldSpec{
		{Field: "firstName", Label: "First Name", Required: true},
		{Field: "lastName", Label: "Last Name", Required: true},
		{Field: "role", Label: "Role", Required: true},
		{Field: "emailAddress", Label: "Email", Type: importer.FieldEmail, Required: true},
		{Field: "phoneNumber", Label: "Phone Number", Required: true},
		{Field: "clientId", Label: "Client ID"},
	},
	HeaderRules: []importer.HeaderRule{
		{Name: "first", Match: importer.Contains("first"), Field: "firstName"},
		{Name: "name-not-last", Match: importer.ContainsExcluding("name", "last"), Field: "firstName"},
		{Name: "last", Match: importer.Contains("last", "surname"), Field: "lastName"},
		{Name: "role", Match: importer.Contains("role", "position", "title"), Field: "role"},
		{Name: "email", Match: importer.Contains("email"), Field: "emailAddress"},
		{Name: "phone", Match: importer.Contains("phone", "mobile", "tel"), Field: "phoneNumber"},
		{Name: "client", Match: importer.Contains("client"), Field: "clientId"},
	},
	Policy:    importer.BlockOnError,
	EntityKey: "contacts",
	ActorKey:  "userId",
	Endpoint:  "/api/v1/contacts/import",
	SampleRows: [][]string{
		{"Alice", "Turner", "Site Manager", "alice.turner@example.com", "07700 900123", "CL-104"},
		{"Brian", "Okafor", "Estimator", "brian.okafor@example.com", "07700 900456", "CL-104"},
		{"Carys", "Hughes", "Joiner", "carys.hughes@example.com", "07700 900789", ""},
	},
}

func init() {
	importer.Register(Contacts)
}
