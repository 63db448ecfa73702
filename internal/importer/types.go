// Package importer implements the spreadsheet import pipeline shared by all
// of the ERP's import flows: decode the uploaded sheet, map its headers onto
// a fixed schema, validate every row, optionally bucket rows into groups,
// hold them in an editable review session, and finally submit the batch to
// the backend import endpoint.
//
// The pipeline is parameterized by a per-entity Definition so the
// subcategory, contact and price-book importers share one implementation
// instead of three copies.
package importer

import (
	"context"
	"fmt"
)

// FieldType is the expected data type of an imported field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEmail
	FieldNumeric
	FieldEnum
)

// FieldSpec describes one target field of an importer's schema.
type FieldSpec struct {
	// Field is the record field name, e.g. "firstName".
	Field string
	// Label is the human header used in templates and error messages,
	// e.g. "First Name".
	Label string
	Type  FieldType
	// Required fields must be non-blank after trimming.
	Required bool
	// EnumValues are the allowed values for FieldEnum, matched
	// case-insensitively.
	EnumValues []string
	// Normalizer, when set, rewrites the raw cell value before it is
	// stored on the record.
	Normalizer func(string) string
}

// HeaderRule maps a source column header onto a target field. Rules are
// evaluated in order per header; the first rule whose predicate matches
// wins, and a header matching no rule is dropped.
type HeaderRule struct {
	// Name identifies the rule in logs and tests.
	Name string
	// Match is a pure predicate over the lower-cased, trimmed header.
	Match func(header string) bool
	// Field is the target field assigned when Match succeeds.
	Field string
}

// SubmitPolicy controls how outstanding row errors gate submission.
type SubmitPolicy int

const (
	// BlockOnError refuses to submit while any row has a validation
	// error.
	BlockOnError SubmitPolicy = iota
	// SkipInvalid submits only the valid rows and silently excludes the
	// rest from the payload. Excluded rows stay visible in the session.
	SkipInvalid
)

// Definition is the full per-entity configuration of the pipeline.
type Definition struct {
	// Key is the stable identifier used in URLs, e.g. "contacts".
	Key   string
	Label string

	Fields []FieldSpec

	// HeaderRules, when set, enable heuristic header matching after the
	// exact label/field match fails. Nil means exact matching only.
	HeaderRules []HeaderRule

	// RequiredHeaders lists headers whose absence aborts the upload
	// before any record exists (case-insensitive).
	RequiredHeaders []string

	// GroupField names the field rows are bucketed by during review.
	// Empty disables the grouping stage. GroupLabel is the plural noun
	// used in grouping error messages ("subcategories").
	GroupField string
	GroupLabel string

	Policy SubmitPolicy

	// EntityKey is the JSON array key carrying the records in the submit
	// payload; ActorKey is the identifying field posted beside it
	// ("userId", "supplierId", ...). Endpoint is the backend import
	// path.
	EntityKey string
	ActorKey  string
	Endpoint  string

	// SampleRows seed the downloadable template, aligned to
	// TemplateHeader(). Samples must pass the importer's own validator.
	SampleRows [][]string
}

// FieldNames returns the target field names in schema order.
func (d Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Field
	}
	return names
}

// TemplateHeader returns the header row used in downloadable templates.
func (d Definition) TemplateHeader() []string {
	header := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		header[i] = f.Label
	}
	return header
}

// Spec returns the FieldSpec for a field name.
func (d Definition) Spec(field string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Record is one structured row under review. Fields always contains every
// schema field; unmapped or missing source cells are stored as "".
// Records are mutable during review and identified by pointer within a
// session, so a record moves between groups without copying.
type Record struct {
	// Row is the 1-based data-row ordinal from the uploaded file.
	Row    int               `json:"row"`
	Fields map[string]string `json:"fields"`
}

// NewRecord returns a Record with every schema field initialized to "".
func NewRecord(d Definition, row int) *Record {
	fields := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		fields[f.Field] = ""
	}
	return &Record{Row: row, Fields: fields}
}

// ValidationError is one row-level problem. The full error list is
// recomputed from scratch whenever any record changes.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d, %s: %s", e.Row, e.Field, e.Message)
}

// State is the review session's lifecycle position.
type State string

const (
	StateNoFile     State = "no_file"
	StateUploaded   State = "uploaded"
	StateGrouped    State = "grouped"
	StateReviewing  State = "reviewing"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// NoticeLevel classifies a user-facing notification.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is one message destined for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// NotificationSink receives user-facing notifications (toasts, banners).
// The surrounding application injects its own implementation; the pipeline
// never talks to ambient UI state directly.
type NotificationSink interface {
	Notify(level NoticeLevel, message string)
}

// CurrentActor identifies who is performing the import, for the
// identifying field posted with each batch.
type CurrentActor interface {
	ActorID(ctx context.Context) string
}

// discardSink drops notifications. Used when no sink is injected.
type discardSink struct{}

func (discardSink) Notify(NoticeLevel, string) {}
