package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Extractor turns foreign history files into batches. It never touches
// the canonical store, so files may be extracted concurrently.
type Extractor struct {
	source      Source
	concurrency int
	now         func() time.Time
	newID       func() string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSource selects the foreign format. Default: SafariSource.
func WithSource(s Source) Option { return func(e *Extractor) { e.source = s } }

// WithConcurrency bounds how many files ExtractFiles reads at once.
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Extractor) { e.now = now } }

// New returns an Extractor with the given options applied.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		source:      SafariSource{},
		concurrency: defaultConcurrency,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FileResult is the outcome of extracting one file: exactly one of Batch
// or Err is set. A non-empty Batch.Warnings is still a success.
type FileResult struct {
	Path  string
	Batch *Batch
	Err   error
}

// Failed reports whether the file was rejected as a whole.
func (r FileResult) Failed() bool { return r.Err != nil }

// Outcome partitions a multi-file run into usable batches and failed files.
type Outcome struct {
	Batches []*Batch
	Failed  []FailedFile
}

// Warnings returns the number of warnings across all successful batches.
func (o *Outcome) Warnings() int {
	n := 0
	for _, b := range o.Batches {
		n += len(b.Warnings)
	}
	return n
}

// ExtractFile validates and extracts a single file. A schema mismatch or an
// unreadable file returns an error and no batch.
func (e *Extractor) ExtractFile(ctx context.Context, path, device string) (*Batch, error) {
	log := zap.L().With(zap.String("file", path), zap.String("format", e.source.Name()))

	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := e.source.Validate(ctx, db); err != nil {
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			err = &OpenError{Path: path, Err: err}
		}
		log.Warn("schema validation failed", zap.Error(err))
		return nil, err
	}

	b := NewBatch(path, device, e.now())
	if err := e.source.Extract(ctx, db, b, e.newID); err != nil {
		log.Warn("extraction failed", zap.Error(err))
		return nil, &OpenError{Path: path, Err: err}
	}

	for _, w := range b.Warnings {
		log.Debug("extraction warning", zap.String("warning", w))
	}
	log.Info("extracted history file",
		zap.Int("urls", len(b.URLs)),
		zap.Int("visits", len(b.Visits)),
		zap.Int("warnings", len(b.Warnings)),
	)
	return b, nil
}

// ExtractFiles runs ExtractFile independently for every path. devices is
// aligned with paths by index and may be shorter. One file's failure never
// affects its siblings; batches keep the input order.
func (e *Extractor) ExtractFiles(ctx context.Context, paths, devices []string) *Outcome {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, path := range paths {
		i, path := i, path
		device := ""
		if i < len(devices) {
			device = devices[i]
		}
		g.Go(func() error {
			b, err := e.ExtractFile(gctx, path, device)
			results[i] = FileResult{Path: path, Batch: b, Err: err}
			return nil // failures are per file
		})
	}
	_ = g.Wait()

	return Partition(results)
}

// Partition splits results into successful batches and failed files.
func Partition(results []FileResult) *Outcome {
	out := &Outcome{Batches: []*Batch{}, Failed: []FailedFile{}}
	for _, r := range results {
		if r.Failed() {
			out.Failed = append(out.Failed, FailedFile{Path: r.Path, Err: r.Err})
			continue
		}
		out.Batches = append(out.Batches, r.Batch)
	}
	return out
}

// openReadOnly opens a foreign SQLite file without any chance of writing
// to it.
func openReadOnly(path string) (*sqlx.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}).String()
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
