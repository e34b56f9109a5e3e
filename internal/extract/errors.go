package extract

import "fmt"

// SchemaError reports a candidate file that lacks a required table. It is
// fatal for that file only.
type SchemaError struct {
	Format string
	Table  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unsupported schema: not a %s history database: missing %q table", e.Format, e.Table)
}

// ParseError reports a single malformed value. It never aborts a batch.
type ParseError struct {
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("parse error: %s: %s", e.Field, e.Msg)
}

// OpenError reports a file that could not be opened or read at all.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// FailedFile pairs a path with the error that stopped its extraction.
type FailedFile struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Description returns a one-line, human-readable summary of the failure.
func (f FailedFile) Description() string {
	return fmt.Sprintf("failed to process %q: %v", f.Path, f.Err)
}
