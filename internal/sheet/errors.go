package sheet

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyFile indicates the upload contained no rows at all.
var ErrEmptyFile = errors.New("file is empty")

// ErrBadFormat indicates the payload could not be decoded as a spreadsheet.
var ErrBadFormat = errors.New("file is not a readable spreadsheet")

// MissingHeadersError reports required column headers absent from row 0.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// IsFileError reports whether err belongs to the file-level error class,
// i.e. the upload must be re-picked rather than edited row by row.
func IsFileError(err error) bool {
	var mh *MissingHeadersError
	return errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrBadFormat) || errors.As(err, &mh)
}
