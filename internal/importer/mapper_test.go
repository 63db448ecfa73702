package importer

import (
	"testing"

	"github.com/calderglen/joinery-imports/internal/sheet"
)

// testContactsDef mirrors the shape of the contact importer: exact label
// matching plus an ordered heuristic rule table.
func testContactsDef() Definition {
	return Definition{
		Key:   "test-contacts",
		Label: "Test Contacts",
		Fields: []FieldSpec{
			{Field: "firstName", Label: "First Name", Required: true},
			{Field: "lastName", Label: "Last Name", Required: true},
			{Field: "emailAddress", Label: "Email", Type: FieldEmail, Required: true},
			{Field: "phoneNumber", Label: "Phone Number", Required: true},
		},
		HeaderRules: []HeaderRule{
			{Name: "first", Match: Contains("first"), Field: "firstName"},
			{Name: "name-not-last", Match: ContainsExcluding("name", "last"), Field: "firstName"},
			{Name: "last", Match: Contains("last", "surname"), Field: "lastName"},
			{Name: "email", Match: Contains("email"), Field: "emailAddress"},
			{Name: "phone", Match: Contains("phone", "mobile", "tel"), Field: "phoneNumber"},
		},
		Policy: BlockOnError,
	}
}

func TestMatchHeader(t *testing.T) {
	def := testContactsDef()

	tests := []struct {
		header string
		want   string
	}{
		// Exact match against label or field name.
		{"first name", "firstName"},
		{"firstname", "firstName"},
		{"email", "emailAddress"},
		// Rules, in declaration order.
		{"first", "firstName"},
		{"surname", "lastName"},
		{"email address", "emailAddress"},
		{"mobile no.", "phoneNumber"},
		{"telephone", "phoneNumber"},
		// A bare "name" lands on first name; "last name" does not.
		{"name", "firstName"},
		{"full name", "firstName"},
		{"last name", "lastName"},
		// No rule matches.
		{"notes", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := matchHeader(def, tt.header); got != tt.want {
				t.Errorf("matchHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestMatchHeader_Deterministic(t *testing.T) {
	def := testContactsDef()
	for i := 0; i < 10; i++ {
		if got := matchHeader(def, "full name"); got != "firstName" {
			t.Fatalf("iteration %d: matchHeader = %q, want firstName", i, got)
		}
	}
}

func TestMapHeaders_FirstColumnClaimsField(t *testing.T) {
	def := testContactsDef()
	cm := MapHeaders(def, []string{"Email", "Contact Email", "Name"})

	if got := cm[0]; got != "emailAddress" {
		t.Errorf("cm[0] = %q, want emailAddress", got)
	}
	if _, ok := cm[1]; ok {
		t.Error("cm[1] should be unmapped; emailAddress already claimed by column 0")
	}
	if got := cm[2]; got != "firstName" {
		t.Errorf("cm[2] = %q, want firstName", got)
	}
}

func TestMapHeaders_DropsUnmatched(t *testing.T) {
	def := testContactsDef()
	cm := MapHeaders(def, []string{"Internal Ref", "First Name", "Notes"})

	if len(cm) != 1 {
		t.Fatalf("len(cm) = %d, want 1", len(cm))
	}
	if got := cm[1]; got != "firstName" {
		t.Errorf("cm[1] = %q, want firstName", got)
	}
}

func TestMapRows(t *testing.T) {
	def := testContactsDef()
	table := &sheet.Table{
		Header: []string{"Name", "Surname", "Email", "Internal Ref"},
		Rows: [][]string{
			{"Alice", "Turner", "alice@example.com", "X-1"},
			{"Bob", "Lee"}, // short row
		},
	}

	records := MapRows(def, table)
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	if first.Row != 1 {
		t.Errorf("records[0].Row = %d, want 1", first.Row)
	}
	if got := first.Fields["firstName"]; got != "Alice" {
		t.Errorf("firstName = %q, want Alice", got)
	}
	if got := first.Fields["lastName"]; got != "Turner" {
		t.Errorf("lastName = %q, want Turner", got)
	}
	if got := first.Fields["emailAddress"]; got != "alice@example.com" {
		t.Errorf("emailAddress = %q, want alice@example.com", got)
	}

	// Unmapped source column never lands on the record.
	for field := range first.Fields {
		if first.Fields[field] == "X-1" {
			t.Errorf("unmapped column value stored on field %q", field)
		}
	}

	// Every schema field exists even when the source row is short.
	second := records[1]
	if got, ok := second.Fields["emailAddress"]; !ok || got != "" {
		t.Errorf("short row emailAddress = %q (ok=%v), want \"\"", got, ok)
	}
	if got, ok := second.Fields["phoneNumber"]; !ok || got != "" {
		t.Errorf("short row phoneNumber = %q (ok=%v), want \"\"", got, ok)
	}
}

func TestMapRows_AppliesNormalizer(t *testing.T) {
	def := Definition{
		Key: "test-norm",
		Fields: []FieldSpec{
			{Field: "status", Label: "Status", Normalizer: func(s string) string { return "norm:" + s }},
		},
	}
	table := &sheet.Table{
		Header: []string{"Status"},
		Rows:   [][]string{{"Active"}, {""}},
	}

	records := MapRows(def, table)
	if got := records[0].Fields["status"]; got != "norm:Active" {
		t.Errorf("status = %q, want norm:Active", got)
	}
	// Blank cells skip the normalizer.
	if got := records[1].Fields["status"]; got != "" {
		t.Errorf("blank status = %q, want \"\"", got)
	}
}
