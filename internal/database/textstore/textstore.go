// Package textstore persists templates in the line-oriented enrollment file:
//
//	label,v1 v2 ... vD
//
// Lines are split on the first comma. Existing lines are never rewritten.
package textstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/facegate/internal/database"
)

// maxLineSize bounds a single record line (a 512-dim vector is well under 16KB).
const maxLineSize = 1 << 20

// Store is a database.Store backed by a text file.
type Store struct {
	path  string
	dim   int
	mu    sync.Mutex
	write func(f *os.File, line string) error
}

// New returns a store for path. A dim of 0 lets the first line establish it.
func New(path string, dim int) *Store {
	return &Store{path: path, dim: dim, write: writeSynced}
}

// Name returns the file path.
func (s *Store) Name() string {
	return s.path
}

// Load parses every line of the file. A missing file is an empty store.
func (s *Store) Load(ctx context.Context) ([]database.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open template file: %w", err)
	}
	defer f.Close()

	return Decode(f, s.dim)
}

// Decode reads records from r, enforcing a common vector length. A dim of 0 is
// established by the first record.
func Decode(r io.Reader, dim int) ([]database.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []database.Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := ParseLine(line)
		if err != nil {
			var pe *database.ParseError
			if errors.As(err, &pe) {
				pe.Line = lineNo
			}
			return nil, err
		}

		if dim == 0 {
			dim = len(rec.Embedding)
		}
		if len(rec.Embedding) != dim {
			return nil, &database.ParseError{
				Line:   lineNo,
				Reason: fmt.Sprintf("vector has %d values, expected %d", len(rec.Embedding), dim),
				Err:    database.ErrDimensionMismatch,
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return records, nil
}

// ParseLine decodes one "label,v1 v2 ..." line. The returned *ParseError has no
// line number set.
func ParseLine(line string) (database.Record, error) {
	label, values, ok := strings.Cut(line, ",")
	if !ok {
		return database.Record{}, &database.ParseError{Reason: "missing comma between label and vector"}
	}
	if label == "" {
		return database.Record{}, &database.ParseError{Reason: "missing label", Err: database.ErrEmptyLabel}
	}

	fields := strings.Fields(values)
	if len(fields) == 0 {
		return database.Record{}, &database.ParseError{Reason: "missing vector"}
	}

	vec := make(database.Vector, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return database.Record{}, &database.ParseError{Reason: fmt.Sprintf("value %d is not a number", i+1), Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return database.Record{}, &database.ParseError{Reason: fmt.Sprintf("value %d is %v", i+1, v), Err: database.ErrInvalidValue}
		}
		vec[i] = float32(v)
	}
	return database.Record{Label: label, Embedding: vec}, nil
}

// FormatLine encodes a record as one line without the trailing newline. Values use
// the shortest text that parses back to the same float32.
func FormatLine(rec database.Record) string {
	var b strings.Builder
	b.Grow(len(rec.Label) + 1 + len(rec.Embedding)*12)
	b.WriteString(rec.Label)
	b.WriteByte(',')
	for i, v := range rec.Embedding {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	return b.String()
}

// Append writes rec as a new line. On any failure the file is truncated back to its
// previous size, so a partial line never remains.
func (s *Store) Append(ctx context.Context, rec database.Record) error {
	if strings.Contains(rec.Label, ",") {
		return fmt.Errorf("%w: %q must not contain a comma", database.ErrInvalidLabel, rec.Label)
	}
	if err := database.CheckFinite(rec.Embedding); err != nil {
		return err
	}
	if s.dim != 0 && len(rec.Embedding) != s.dim {
		return fmt.Errorf("%w: got %d values, expected %d", database.ErrDimensionMismatch, len(rec.Embedding), s.dim)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open template file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat template file: %w", err)
	}
	size := info.Size()

	line := FormatLine(rec) + "\n"
	if size > 0 {
		needsBreak, err := missingTrailingNewline(f, size)
		if err != nil {
			return err
		}
		if needsBreak {
			line = "\n" + line
		}
	}

	if err := s.write(f, line); err != nil {
		return rollback(f, size, err)
	}
	if s.dim == 0 {
		s.dim = len(rec.Embedding)
	}
	return nil
}

// Close is a no-op; the file is opened per operation.
func (s *Store) Close() error {
	return nil
}

// writeSynced writes line in one call and flushes it to disk.
func writeSynced(f *os.File, line string) error {
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync template file: %w", err)
	}
	return nil
}

func missingTrailingNewline(f *os.File, size int64) (bool, error) {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, fmt.Errorf("failed to read template file: %w", err)
	}
	return last[0] != '\n', nil
}

func rollback(f *os.File, size int64, cause error) error {
	if err := f.Truncate(size); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to roll back partial write: %w", err))
	}
	return cause
}
