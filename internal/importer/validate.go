package importer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// validate.go checks records against the importer's field specs.
//
// Validation is pure and total: every record is checked independently and
// the complete error list is returned, never a short-circuited prefix.
// The list is recomputed from scratch on every edit; record sets are
// reviewed by a human and stay in the hundreds of rows, so a full pass is
// cheaper than keeping an incremental index correct.

// Basic local@domain.tld shape. Deliverability is the backend's problem.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate returns all row-level errors for the record set, ordered by row
// and then by schema field order.
func Validate(def Definition, records []*Record) []ValidationError {
	var errs []ValidationError
	for _, rec := range records {
		errs = append(errs, validateRecord(def, rec)...)
	}
	return errs
}

// HasRowError reports whether any error in errs belongs to the given row.
func HasRowError(errs []ValidationError, row int) bool {
	for _, e := range errs {
		if e.Row == row {
			return true
		}
	}
	return false
}

func validateRecord(def Definition, rec *Record) []ValidationError {
	var errs []ValidationError
	for _, spec := range def.Fields {
		value := strings.TrimSpace(rec.Fields[spec.Field])

		if value == "" {
			if spec.Required {
				errs = append(errs, ValidationError{
					Row:     rec.Row,
					Field:   spec.Field,
					Message: fmt.Sprintf("%s is required", spec.Label),
				})
			}
			continue
		}

		if msg := checkFormat(spec, value); msg != "" {
			errs = append(errs, ValidationError{
				Row:     rec.Row,
				Field:   spec.Field,
				Message: msg,
			})
		}
	}
	return errs
}

// checkFormat validates a non-blank value against the field's type.
// Returns "" when valid.
func checkFormat(spec FieldSpec, value string) string {
	switch spec.Type {
	case FieldEmail:
		if !emailPattern.MatchString(value) {
			return fmt.Sprintf("%s must be a valid email address", spec.Label)
		}
	case FieldNumeric:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
			return fmt.Sprintf("%s must be a number", spec.Label)
		}
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, value) {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", spec.Label, strings.Join(spec.EnumValues, ", "))
	}
	return ""
}
