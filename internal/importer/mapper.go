package importer

import (
	"strings"

	"github.com/calderglen/joinery-imports/internal/sheet"
)

// mapper.go maps heterogeneous source column headers onto the importer's
// fixed schema.
//
// Matching policy, per header, evaluated on the lower-cased trimmed text:
//  1. Exact match (case-insensitive) against a field's Label or Field name.
//  2. The definition's HeaderRules, in declaration order; first match wins.
//  3. No match: the column is dropped, its cells are never stored.
//
// A field claimed by an earlier column is not reassigned by a later one,
// so duplicate headers keep their leftmost column. The whole policy is a
// pure function of the header text, which keeps it auditable and testable
// in isolation from parsing.

// ColumnMap maps source column positions to target field names.
type ColumnMap map[int]string

// MapHeaders resolves every source header to a target field.
func MapHeaders(def Definition, header []string) ColumnMap {
	cm := make(ColumnMap)
	claimed := make(map[string]bool, len(def.Fields))

	for pos, raw := range header {
		h := strings.ToLower(sheet.CleanCell(raw))
		if h == "" {
			continue
		}
		field := matchHeader(def, h)
		if field == "" || claimed[field] {
			continue
		}
		cm[pos] = field
		claimed[field] = true
	}
	return cm
}

// matchHeader resolves a single lower-cased header to a field name, or ""
// when no rule matches. Reapplying it to the same header always yields the
// same field.
func matchHeader(def Definition, header string) string {
	for _, f := range def.Fields {
		if strings.EqualFold(f.Label, header) || strings.EqualFold(f.Field, header) {
			return f.Field
		}
	}
	for _, rule := range def.HeaderRules {
		if rule.Match(header) {
			return rule.Field
		}
	}
	return ""
}

// MapRows converts decoded sheet rows into structured records. Every record
// carries every schema field; source cells outside the column map are
// ignored and missing cells default to "". Row numbering is 1-based over
// the data rows.
func MapRows(def Definition, t *sheet.Table) []*Record {
	cm := MapHeaders(def, t.Header)

	records := make([]*Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		rec := NewRecord(def, i+1)
		for pos, field := range cm {
			val := t.Cell(row, pos)
			if spec, ok := def.Spec(field); ok && spec.Normalizer != nil && val != "" {
				val = spec.Normalizer(val)
			}
			rec.Fields[field] = val
		}
		records = append(records, rec)
	}
	return records
}

// Header predicates for HeaderRules. All operate on the lower-cased header.

// Contains matches headers containing any of the given substrings.
func Contains(subs ...string) func(string) bool {
	return func(h string) bool {
		for _, s := range subs {
			if strings.Contains(h, s) {
				return true
			}
		}
		return false
	}
}

// ContainsExcluding matches headers containing sub but none of the
// excluded substrings. Used for rules like `"name" but not "last"`.
func ContainsExcluding(sub string, excluded ...string) func(string) bool {
	return func(h string) bool {
		if !strings.Contains(h, sub) {
			return false
		}
		for _, e := range excluded {
			if strings.Contains(h, e) {
				return false
			}
		}
		return true
	}
}
