package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calderglen/joinery-imports/internal/sheet"
)

// fakeBackend records submitted batches and answers from canned state.
type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	lastDef Definition
	lastRec []*Record
	actor   string

	resp  *BackendResponse
	err   error
	block chan struct{} // when set, SubmitBatch waits on it
}

func (f *fakeBackend) SubmitBatch(ctx context.Context, def Definition, records []*Record, actorID string) (*BackendResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastDef = def
	f.lastRec = records
	f.actor = actorID
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &BackendResponse{Message: "ok"}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingSink) Notify(level NoticeLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: message})
}

func sessionDef() Definition {
	return Definition{
		Key:   "test-subcats",
		Label: "Test Subcategories",
		Fields: []FieldSpec{
			{Field: "code", Label: "Code", Required: true},
			{Field: "subcategory", Label: "Subcategory", Required: true},
		},
		RequiredHeaders: []string{"Code", "Subcategory"},
		GroupField:      "subcategory",
		GroupLabel:      "subcategories",
		Policy:          BlockOnError,
		EntityKey:       "subcategories",
		ActorKey:        "categoryId",
		Endpoint:        "/import",
	}
}

// loadedSession builds a session holding the given subcategory values.
func loadedSession(t *testing.T, def Definition, sink NotificationSink, subcats ...string) *Session {
	t.Helper()

	s := newSession("sess-1", def, sink)
	recs := make([]*Record, len(subcats))
	for i, v := range subcats {
		rec := NewRecord(def, i+1)
		rec.Fields["code"] = "C"
		rec.Fields["subcategory"] = v
		recs[i] = rec
	}
	gen := s.beginLoad()
	if err := s.completeLoad(gen, "test.csv", recs, Validate(def, recs)); err != nil {
		t.Fatalf("completeLoad() error = %v", err)
	}
	return s
}

func TestRunPipeline(t *testing.T) {
	def := sessionDef()
	data := []byte("Code,Subcategory\nDR-100,Doors\n,Drawers\n")

	records, errs, err := runPipeline(def, "up.csv", data)
	if err != nil {
		t.Fatalf("runPipeline() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	// Row 2 is missing its code.
	if len(errs) != 1 || errs[0].Row != 2 || errs[0].Field != "code" {
		t.Errorf("errs = %v, want one code error on row 2", errs)
	}
}

func TestRunPipeline_MissingHeaders(t *testing.T) {
	def := sessionDef()
	data := []byte("Code,Description\nDR-100,door\n")

	_, _, err := runPipeline(def, "up.csv", data)
	var missing *sheet.MissingHeadersError
	if !errors.As(err, &missing) {
		t.Fatalf("runPipeline() error = %v, want MissingHeadersError", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "Subcategory" {
		t.Errorf("Missing = %v, want [Subcategory]", missing.Missing)
	}
}

func TestRunPipeline_HeaderWithoutRows(t *testing.T) {
	def := sessionDef()
	data := []byte("Code,Subcategory\n")

	_, _, err := runPipeline(def, "up.csv", data)
	if !errors.Is(err, sheet.ErrEmptyFile) {
		t.Fatalf("runPipeline() error = %v, want ErrEmptyFile", err)
	}
	if !strings.Contains(err.Error(), "no data rows below the header") {
		t.Errorf("error = %q, want mention of missing data rows", err)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "Drawers")

	if got := s.State(); got != StateUploaded {
		t.Fatalf("State() = %q, want uploaded", got)
	}

	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got := s.State(); got != StateGrouped {
		t.Fatalf("State() = %q, want grouped", got)
	}

	if err := s.EditCell(1, "code", "DR-101"); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}
	if got := s.State(); got != StateReviewing {
		t.Errorf("State() = %q, want reviewing after edit", got)
	}
}

func TestSession_AdvanceWithoutGroupField(t *testing.T) {
	def := sessionDef()
	def.GroupField = ""
	def.GroupLabel = ""
	s := loadedSession(t, def, nil, "Doors")

	if err := s.Advance(); err == nil {
		t.Error("Advance() error = nil, want error for ungrouped importer")
	}
}

func TestSession_AdvanceNoUsableGroups(t *testing.T) {
	def := sessionDef()
	sink := &recordingSink{}
	s := loadedSession(t, def, sink, "", "  ")

	err := s.Advance()
	if err == nil {
		t.Fatal("Advance() error = nil, want error")
	}
	if got := s.State(); got != StateUploaded {
		t.Errorf("State() = %q, want uploaded (unchanged)", got)
	}
	if len(sink.notices) != 1 || sink.notices[0].Level != NoticeError {
		t.Errorf("notices = %v, want one error notice", sink.notices)
	}
}

func TestSession_EditCellRevalidates(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors")

	// Blank out a required field, then restore it.
	if err := s.EditCell(1, "code", ""); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}
	if v := s.View(); len(v.Errors) != 1 {
		t.Fatalf("Errors = %v, want one", v.Errors)
	}

	if err := s.EditCell(1, "code", "DR-100"); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}
	if v := s.View(); len(v.Errors) != 0 {
		t.Errorf("Errors = %v, want none after fix", v.Errors)
	}
}

func TestSession_EditCellRegroups(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "Doors")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	if err := s.EditCell(2, "subcategory", "Drawers"); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}

	v := s.View()
	if len(v.Groups) != 2 {
		t.Fatalf("Groups = %d, want 2", len(v.Groups))
	}
	if got := len(v.Groups[0].Members); got != 1 {
		t.Errorf("Doors members = %d, want 1", got)
	}
	if got := len(v.Groups[1].Members); got != 1 {
		t.Errorf("Drawers members = %d, want 1", got)
	}
}

func TestSession_EditCellCaseOnlyRegroups(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "Panels")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	// Case-only changes move the record; after both edits the records
	// share one bucket whose key matches their current field value.
	if err := s.EditCell(1, "subcategory", "DOORS"); err != nil {
		t.Fatalf("EditCell(1) error = %v", err)
	}
	if err := s.EditCell(2, "subcategory", "DOORS"); err != nil {
		t.Fatalf("EditCell(2) error = %v", err)
	}

	v := s.View()
	if len(v.Groups) != 3 {
		t.Fatalf("Groups = %d, want 3 (Doors, Panels, DOORS)", len(v.Groups))
	}
	for _, grp := range v.Groups[:2] {
		if len(grp.Members) != 0 {
			t.Errorf("group %q members = %d, want 0", grp.Key, len(grp.Members))
		}
	}
	last := v.Groups[2]
	if last.Key != "DOORS" || len(last.Members) != 2 {
		t.Fatalf("group %q members = %d, want DOORS with 2", last.Key, len(last.Members))
	}
	for _, m := range last.Members {
		if got := m.Fields["subcategory"]; got != "DOORS" {
			t.Errorf("member row %d subcategory = %q, want DOORS", m.Row, got)
		}
	}
}

func TestSession_ViewIsDetached(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "Drawers")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	before := s.View()
	if err := s.EditCell(1, "code", "EDITED"); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}
	if got := before.Records[0].Fields["code"]; got != "C" {
		t.Errorf("snapshot code = %q, want the pre-edit value C", got)
	}
	if got := before.Groups[0].Members[0].Fields["code"]; got != "C" {
		t.Errorf("snapshot group member code = %q, want C", got)
	}

	// Writes to the snapshot never reach the session either.
	before.Records[1].Fields["subcategory"] = "Hinges"
	if got := s.View().Records[1].Fields["subcategory"]; got != "Drawers" {
		t.Errorf("session subcategory = %q, want Drawers", got)
	}
}

func TestSession_ViewConcurrentWithEdits(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "Drawers")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := json.Marshal(s.View()); err != nil {
				t.Errorf("Marshal(View()) error = %v", err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		if err := s.EditCell(1, "subcategory", "Drawers"); err != nil {
			t.Fatalf("EditCell() error = %v", err)
		}
		if err := s.EditCell(1, "subcategory", "Doors"); err != nil {
			t.Fatalf("EditCell() error = %v", err)
		}
	}
	<-done
}

func TestSession_EditCellErrors(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors")

	if err := s.EditCell(1, "nope", "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("EditCell(unknown field) error = %v, want ErrUnknownField", err)
	}
	if err := s.EditCell(99, "code", "x"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("EditCell(unknown row) error = %v, want ErrRowNotFound", err)
	}
}

func TestSession_DeleteRow(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "")
	if v := s.View(); len(v.Errors) != 1 {
		t.Fatalf("Errors = %v, want one (blank subcategory)", v.Errors)
	}

	if err := s.DeleteRow(2); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}

	v := s.View()
	if len(v.Records) != 1 {
		t.Errorf("Records = %d, want 1", len(v.Records))
	}
	if len(v.Errors) != 0 {
		t.Errorf("Errors = %v, want none after deleting the bad row", v.Errors)
	}

	if err := s.DeleteRow(2); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("DeleteRow(gone) error = %v, want ErrRowNotFound", err)
	}
}

func TestSession_StaleLoadLoses(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors")

	slowGen := s.beginLoad()
	fastGen := s.beginLoad()

	fast := []*Record{NewRecord(def, 1)}
	fast[0].Fields["code"] = "NEW"
	fast[0].Fields["subcategory"] = "Panels"
	if err := s.completeLoad(fastGen, "fast.csv", fast, Validate(def, fast)); err != nil {
		t.Fatalf("completeLoad(fast) error = %v", err)
	}

	slow := []*Record{NewRecord(def, 1)}
	if err := s.completeLoad(slowGen, "slow.csv", slow, Validate(def, slow)); !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("completeLoad(slow) error = %v, want ErrStaleLoad", err)
	}

	// Last successfully started load wins.
	v := s.View()
	if v.FileName != "fast.csv" {
		t.Errorf("FileName = %q, want fast.csv", v.FileName)
	}
	if v.Records[0].Fields["code"] != "NEW" {
		t.Errorf("records = %v, want the fast load's records", v.Records[0].Fields)
	}
}

func TestSession_ReplaceResetsGrouping(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	gen := s.beginLoad()
	recs := []*Record{NewRecord(def, 1)}
	recs[0].Fields["code"] = "X"
	recs[0].Fields["subcategory"] = "Panels"
	if err := s.completeLoad(gen, "two.csv", recs, Validate(def, recs)); err != nil {
		t.Fatalf("completeLoad() error = %v", err)
	}

	v := s.View()
	if v.State != StateUploaded {
		t.Errorf("State = %q, want uploaded", v.State)
	}
	if v.Groups != nil {
		t.Errorf("Groups = %v, want nil after replace", v.Groups)
	}
}

func TestSession_SubmitBlockedByErrors(t *testing.T) {
	def := sessionDef()
	backend := &fakeBackend{}
	s := loadedSession(t, def, nil, "Doors", "")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	_, err := s.Submit(context.Background(), backend, "user-1")
	if err == nil {
		t.Fatal("Submit() error = nil, want gating error")
	}
	if got := err.Error(); got != "resolve 1 row error(s) before submitting" {
		t.Errorf("error = %q", got)
	}
	if backend.calls != 0 {
		t.Errorf("backend.calls = %d, want 0", backend.calls)
	}
	if got := s.State(); got != StateGrouped {
		t.Errorf("State() = %q, want grouped (unchanged)", got)
	}
}

func TestSession_SubmitRequiresGrouping(t *testing.T) {
	def := sessionDef()
	backend := &fakeBackend{}
	s := loadedSession(t, def, nil, "Doors")

	_, err := s.Submit(context.Background(), backend, "user-1")
	if err == nil || !strings.Contains(err.Error(), "group the subcategories") {
		t.Errorf("Submit() error = %v, want grouping gate", err)
	}
}

func TestSession_SubmitSuccess(t *testing.T) {
	def := sessionDef()
	backend := &fakeBackend{resp: &BackendResponse{Message: "imported 2 subcategories"}}
	s := loadedSession(t, def, nil, "Doors", "Drawers")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	result, err := s.Submit(context.Background(), backend, "user-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.Submitted != 2 {
		t.Errorf("Submitted = %d, want 2", result.Submitted)
	}
	if len(result.ExcludedRows) != 0 {
		t.Errorf("ExcludedRows = %v, want none", result.ExcludedRows)
	}
	if result.Message != "imported 2 subcategories" {
		t.Errorf("Message = %q", result.Message)
	}
	if backend.actor != "user-1" {
		t.Errorf("actor = %q, want user-1", backend.actor)
	}
	if got := s.State(); got != StateDone {
		t.Errorf("State() = %q, want done", got)
	}

	// A finished session refuses everything.
	if err := s.EditCell(1, "code", "x"); !errors.Is(err, ErrSessionDone) {
		t.Errorf("EditCell after done error = %v, want ErrSessionDone", err)
	}
	if _, err := s.Submit(context.Background(), backend, "user-1"); !errors.Is(err, ErrSessionDone) {
		t.Errorf("second Submit error = %v, want ErrSessionDone", err)
	}
}

func TestSession_SubmitFailureKeepsEdits(t *testing.T) {
	def := sessionDef()
	backend := &fakeBackend{err: errors.New("backend down")}
	sink := &recordingSink{}
	s := loadedSession(t, def, sink, "Doors")
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	_, err := s.Submit(context.Background(), backend, "user-1")
	if err == nil {
		t.Fatal("Submit() error = nil, want backend error")
	}
	if got := s.State(); got != StateFailed {
		t.Fatalf("State() = %q, want failed", got)
	}
	if len(sink.notices) == 0 || sink.notices[len(sink.notices)-1].Level != NoticeError {
		t.Errorf("notices = %v, want trailing error notice", sink.notices)
	}

	// Records survive, editing reopens review, resubmit succeeds.
	if err := s.EditCell(1, "code", "DR-200"); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}
	if got := s.State(); got != StateReviewing {
		t.Errorf("State() = %q, want reviewing", got)
	}

	backend.err = nil
	if _, err := s.Submit(context.Background(), backend, "user-1"); err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
	if backend.lastRec[0].Fields["code"] != "DR-200" {
		t.Errorf("resubmitted code = %q, want the edited value", backend.lastRec[0].Fields["code"])
	}
}

func TestSession_SubmitSkipInvalid(t *testing.T) {
	def := sessionDef()
	def.GroupField = ""
	def.GroupLabel = ""
	def.Policy = SkipInvalid
	backend := &fakeBackend{}
	s := loadedSession(t, def, nil, "Doors", "", "Panels")

	result, err := s.Submit(context.Background(), backend, "user-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.Submitted != 2 {
		t.Errorf("Submitted = %d, want 2", result.Submitted)
	}
	if len(result.ExcludedRows) != 1 || result.ExcludedRows[0] != 2 {
		t.Errorf("ExcludedRows = %v, want [2]", result.ExcludedRows)
	}
	if len(backend.lastRec) != 2 {
		t.Errorf("backend received %d records, want 2", len(backend.lastRec))
	}
}

func TestSession_SubmitSkipInvalidAllBad(t *testing.T) {
	def := sessionDef()
	def.GroupField = ""
	def.GroupLabel = ""
	def.Policy = SkipInvalid
	backend := &fakeBackend{}
	s := loadedSession(t, def, nil, "", "")

	_, err := s.Submit(context.Background(), backend, "user-1")
	if err == nil || !strings.Contains(err.Error(), "no valid rows") {
		t.Errorf("Submit() error = %v, want no-valid-rows error", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend.calls = %d, want 0", backend.calls)
	}
}

func TestSession_ReentrantSubmit(t *testing.T) {
	def := sessionDef()
	def.GroupField = ""
	def.GroupLabel = ""
	backend := &fakeBackend{block: make(chan struct{})}
	s := loadedSession(t, def, nil, "Doors")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), backend, "user-1")
		done <- err
	}()

	// Wait for the first submit to reach the backend.
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("session never entered submitting")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Submit(context.Background(), backend, "user-1"); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("second Submit error = %v, want ErrSubmitInProgress", err)
	}
	if err := s.EditCell(1, "code", "x"); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("EditCell during submit error = %v, want ErrSubmitInProgress", err)
	}

	close(backend.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit error = %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend.calls = %d, want 1", backend.calls)
	}
}

func TestSession_CanSubmit(t *testing.T) {
	def := sessionDef()
	s := loadedSession(t, def, nil, "Doors", "")

	// Grouping pending and a row error outstanding.
	if s.View().CanSubmit {
		t.Error("CanSubmit = true before grouping, want false")
	}

	if err := s.EditCell(2, "subcategory", "Drawers"); err != nil {
		t.Fatalf("EditCell() error = %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	if !s.View().CanSubmit {
		t.Error("CanSubmit = false with zero errors and grouping done, want true")
	}
}
