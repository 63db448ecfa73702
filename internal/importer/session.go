package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calderglen/joinery-imports/internal/sheet"
)

// session.go holds the review state machine:
//
//	NoFile -> Uploaded -> (Grouped) -> Reviewing -> Submitting -> Done
//	                                                          \-> Failed
//
// A session is created only after the first upload passes the
// parse/map/validate stages with at least one record; a failed upload
// never leaves NoFile behind. Failed is recoverable: editing or
// resubmitting moves the session back through Reviewing. Reset is reached
// by discarding the session.
//
// All mutations go through the session mutex, which also makes
// "at most one outstanding submit" explicit rather than accidental.

var (
	// ErrStaleLoad means a decode finished after a newer file was chosen
	// for the same session; its results were discarded.
	ErrStaleLoad = errors.New("file superseded by a newer upload")

	// ErrSubmitInProgress guards against re-entrant submit clicks.
	ErrSubmitInProgress = errors.New("import already in progress")

	// ErrSessionDone means the session already submitted successfully.
	ErrSessionDone = errors.New("import already completed")

	// ErrRowNotFound means the referenced record does not exist.
	ErrRowNotFound = errors.New("row not found")

	// ErrUnknownField means the referenced field is not in the schema.
	ErrUnknownField = errors.New("unknown field")
)

// Session is one upload-review-submit cycle. It owns its records, errors
// and groups exclusively; nothing is shared across sessions and nothing is
// persisted.
type Session struct {
	ID       string
	Importer string

	mu        sync.Mutex
	def       Definition
	state     State
	fileName  string
	records   []*Record
	errs      []ValidationError
	grouping  *Grouping
	notices   []Notice
	result    *SubmitResult
	loadGen   uint64
	createdAt time.Time
	updatedAt time.Time
	sink      NotificationSink
}

func newSession(id string, def Definition, sink NotificationSink) *Session {
	if sink == nil {
		sink = discardSink{}
	}
	now := time.Now()
	return &Session{
		ID:        id,
		Importer:  def.Key,
		def:       def,
		state:     StateNoFile,
		createdAt: now,
		updatedAt: now,
		sink:      sink,
	}
}

// runPipeline executes parse -> map -> validate for one uploaded file.
// Any error it returns is file-level: no records exist and the caller's
// state is untouched.
func runPipeline(def Definition, fileName string, data []byte) ([]*Record, []ValidationError, error) {
	table, err := sheet.Decode(data, fileName)
	if err != nil {
		return nil, nil, err
	}

	if len(def.RequiredHeaders) > 0 {
		if err := sheet.RequireHeaders(table, def.RequiredHeaders); err != nil {
			return nil, nil, err
		}
	}

	if len(table.Rows) == 0 {
		return nil, nil, fmt.Errorf("%w: no data rows below the header", sheet.ErrEmptyFile)
	}

	records := MapRows(def, table)
	return records, Validate(def, records), nil
}

// beginLoad claims a new load generation. The caller decodes the file
// outside the lock and hands the results to completeLoad with this
// generation; results from a superseded generation are discarded.
func (s *Session) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadGen++
	return s.loadGen
}

// completeLoad installs a freshly decoded record set, replacing whatever
// the session held before. Rejected with ErrStaleLoad when a newer load
// has started since gen was claimed.
func (s *Session) completeLoad(gen uint64, fileName string, records []*Record, errs []ValidationError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.loadGen {
		return ErrStaleLoad
	}
	if s.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	if s.state == StateDone {
		return ErrSessionDone
	}

	s.fileName = fileName
	s.records = records
	s.errs = errs
	s.grouping = nil
	s.result = nil
	s.state = StateUploaded
	s.touch()
	return nil
}

// Advance runs the grouping stage, moving Uploaded to Grouped. For
// importers without a group field it is a no-op error. Zero usable groups
// keeps the session in Uploaded and raises a toast.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.def.GroupField == "" {
		return fmt.Errorf("importer %s has no grouping stage", s.def.Key)
	}
	switch s.state {
	case StateUploaded:
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateDone:
		return ErrSessionDone
	default:
		return fmt.Errorf("cannot group from state %s", s.state)
	}

	grouping, err := BuildGroups(s.def, s.records)
	if err != nil {
		s.notify(NoticeError, err.Error())
		return err
	}

	s.grouping = grouping
	s.state = StateGrouped
	s.touch()
	return nil
}

// EditCell updates exactly one field of exactly one record, re-runs
// validation over the whole record set, and re-buckets the record when the
// grouping field changed. Editing implicitly moves a grouped or failed
// session into Reviewing.
func (s *Session) EditCell(row int, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}

	spec, ok := s.def.Spec(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	rec := s.findRow(row)
	if rec == nil {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row)
	}

	if spec.Normalizer != nil && value != "" {
		value = spec.Normalizer(value)
	}

	old := rec.Fields[field]
	rec.Fields[field] = value
	s.errs = Validate(s.def, s.records)

	// Buckets are keyed by the exact trimmed value, so a case-only change
	// is a real move.
	if s.grouping != nil && field == s.def.GroupField && strings.TrimSpace(old) != strings.TrimSpace(value) {
		s.grouping.Move(rec)
	}

	if s.state == StateGrouped || s.state == StateFailed {
		s.state = StateReviewing
	}
	s.touch()
	return nil
}

// DeleteRow removes a record from the session, its errors, and its group.
func (s *Session) DeleteRow(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}

	for i, rec := range s.records {
		if rec.Row == row {
			s.records = append(s.records[:i], s.records[i+1:]...)
			if s.grouping != nil {
				s.grouping.Remove(rec)
			}
			s.errs = Validate(s.def, s.records)
			if s.state == StateGrouped || s.state == StateFailed {
				s.state = StateReviewing
			}
			s.touch()
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrRowNotFound, row)
}

// editable reports whether the session accepts record mutations.
func (s *Session) editable() error {
	switch s.state {
	case StateUploaded, StateGrouped, StateReviewing, StateFailed:
		return nil
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateDone:
		return ErrSessionDone
	default:
		return errors.New("no file uploaded")
	}
}

// Submit applies the importer's gating policy and posts the batch to the
// backend. On success the session moves to Done; on failure it moves to
// Failed with every edit preserved for retry.
func (s *Session) Submit(ctx context.Context, backend Backend, actorID string) (*SubmitResult, error) {
	batch, err := s.beginSubmit()
	if err != nil {
		return nil, err
	}

	resp, err := backend.SubmitBatch(ctx, s.def, batch.records, actorID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateFailed
		s.notify(NoticeError, fmt.Sprintf("import failed: %v", err))
		s.touch()
		return nil, err
	}

	result := &SubmitResult{
		SessionID:    s.ID,
		Importer:     s.def.Key,
		Submitted:    len(batch.records),
		ExcludedRows: batch.excluded,
		Message:      resp.Message,
	}
	s.result = result
	s.state = StateDone
	if resp.Message != "" {
		s.notify(NoticeInfo, resp.Message)
	}
	s.touch()
	return result, nil
}

type submitBatch struct {
	records  []*Record
	excluded []int
}

// beginSubmit moves the session into Submitting and snapshots the rows to
// post, or explains why submission is gated.
func (s *Session) beginSubmit() (*submitBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSubmitting:
		return nil, ErrSubmitInProgress
	case StateDone:
		return nil, ErrSessionDone
	case StateNoFile:
		return nil, errors.New("no file uploaded")
	}
	if s.def.GroupField != "" && s.grouping == nil {
		return nil, fmt.Errorf("group the %s before submitting", s.def.GroupLabel)
	}

	batch := &submitBatch{}
	switch s.def.Policy {
	case BlockOnError:
		if n := len(s.errs); n > 0 {
			return nil, fmt.Errorf("resolve %d row error(s) before submitting", n)
		}
		batch.records = append(batch.records, s.records...)
	case SkipInvalid:
		for _, rec := range s.records {
			if HasRowError(s.errs, rec.Row) {
				batch.excluded = append(batch.excluded, rec.Row)
				continue
			}
			batch.records = append(batch.records, rec)
		}
	}

	if len(batch.records) == 0 {
		return nil, errors.New("no valid rows to submit")
	}

	s.state = StateSubmitting
	s.touch()
	return batch, nil
}

func (s *Session) findRow(row int) *Record {
	for _, rec := range s.records {
		if rec.Row == row {
			return rec
		}
	}
	return nil
}

// notify records a user-facing notice and forwards it to the injected
// sink. Callers hold the session mutex.
func (s *Session) notify(level NoticeLevel, message string) {
	s.notices = append(s.notices, Notice{Level: level, Message: message})
	s.sink.Notify(level, message)
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

// idleSince returns the last mutation time, for TTL sweeping.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SessionView is the JSON projection of a session.
type SessionView struct {
	ID        string            `json:"id"`
	Importer  string            `json:"importer"`
	State     State             `json:"state"`
	FileName  string            `json:"fileName,omitempty"`
	Records   []*Record         `json:"records"`
	Errors    []ValidationError `json:"errors"`
	Groups    []*Group          `json:"groups,omitempty"`
	Notices   []Notice          `json:"notices,omitempty"`
	CanSubmit bool              `json:"canSubmit"`
	Result    *SubmitResult     `json:"result,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// View snapshots the session for API responses. The snapshot shares
// nothing with session-owned state: handlers JSON-encode it after the
// lock is released, so every record map and group member list is copied
// here rather than aliased.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	copies := make(map[*Record]*Record, len(s.records))
	records := make([]*Record, len(s.records))
	for i, rec := range s.records {
		cp := &Record{Row: rec.Row, Fields: make(map[string]string, len(rec.Fields))}
		for field, value := range rec.Fields {
			cp.Fields[field] = value
		}
		copies[rec] = cp
		records[i] = cp
	}

	v := SessionView{
		ID:        s.ID,
		Importer:  s.Importer,
		State:     s.state,
		FileName:  s.fileName,
		Records:   records,
		Errors:    append([]ValidationError(nil), s.errs...),
		Notices:   append([]Notice(nil), s.notices...),
		Result:    s.result,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if v.Errors == nil {
		v.Errors = []ValidationError{}
	}
	if s.grouping != nil {
		v.Groups = make([]*Group, len(s.grouping.Groups))
		for i, grp := range s.grouping.Groups {
			members := make([]*Record, len(grp.Members))
			for j, m := range grp.Members {
				members[j] = copies[m]
			}
			v.Groups[i] = &Group{Key: grp.Key, Members: members}
		}
	}
	v.CanSubmit = s.canSubmit()
	return v
}

// canSubmit implements the submit gating shown to the UI: under
// BlockOnError any outstanding error disables the action, under
// SkipInvalid at least one valid row enables it. Callers hold the mutex.
func (s *Session) canSubmit() bool {
	switch s.state {
	case StateUploaded, StateGrouped, StateReviewing, StateFailed:
	default:
		return false
	}
	if s.def.GroupField != "" && s.grouping == nil {
		return false
	}
	switch s.def.Policy {
	case BlockOnError:
		return len(s.records) > 0 && len(s.errs) == 0
	case SkipInvalid:
		for _, rec := range s.records {
			if !HasRowError(s.errs, rec.Row) {
				return true
			}
		}
	}
	return false
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
