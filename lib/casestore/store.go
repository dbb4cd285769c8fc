// Package casestore accumulates extracted case records into a JSON
// array file, one record at a time. Records are written as soon as they
// are accepted so a crashed run loses at most the in-flight record, and
// the array's closing bracket is deliberately withheld until Finalize so
// an interrupted file can be reopened and appended to later.
package casestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Sentinel marks a field the detail scraper could not extract. Records
// whose key field is missing, empty or equal to this value are never
// persisted.
const Sentinel = "N/A"

// Record is one extracted case. The store only interprets the key
// field, everything else passes through opaquely.
type Record = map[string]any

// RecoveryMode controls what Open does with a pre-existing file it
// cannot parse.
type RecoveryMode int

const (
	// RecoverRestart discards the unparseable content with a warning
	// and starts a fresh file.
	RecoverRestart RecoveryMode = iota
	// RecoverFail returns the parse error from Open and leaves the
	// file untouched.
	RecoverFail
)

type Options struct {
	Path string
	// KeyField names the record field used for duplicate suppression,
	// e.g. "Case_No".
	KeyField string
	Recovery RecoveryMode
}

type Summary struct {
	TotalRecords   int    `json:"total_records"`
	OutputPath     string `json:"output_path"`
	ExtractionDate string `json:"extraction_date"`
	AppendMode     bool   `json:"append_mode"`
}

// Store is safe for concurrent Commit calls. One Store per output path;
// opening the same path from two stores at once is not supported.
type Store struct {
	mu sync.Mutex

	opts       Options
	file       *os.File
	seen       map[string]struct{}
	count      int
	appendMode bool
	open       bool
	summary    Summary
}

// Open creates or reopens the JSON array file at opts.Path and returns
// a store ready for Commit. A pre-existing file, finalized or not, is
// parsed to recover the already-committed keys and then truncated back
// to the open, unterminated-array state so later commits append cleanly.
func Open(opts Options) (*Store, error) {
	if opts.KeyField == "" {
		return nil, fmt.Errorf("casestore: KeyField is required")
	}

	err := os.MkdirAll(filepath.Dir(opts.Path), 0755)
	if err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	s := &Store{
		opts: opts,
		seen: map[string]struct{}{},
	}

	content, err := os.ReadFile(opts.Path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading existing output: %w", err)
	}

	body, recovered, err := s.recoverExisting(content)
	if err != nil {
		return nil, err
	}

	s.file, err = os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}

	if recovered && s.count > 0 {
		// keep the prior elements, drop only the terminator
		err = s.file.Truncate(int64(len(body)))
	} else {
		err = s.file.Truncate(0)
		if err == nil {
			_, err = s.file.Write([]byte("[\n"))
		}
	}
	if err != nil {
		s.file.Close()
		return nil, fmt.Errorf("preparing output for append: %w", err)
	}

	s.appendMode = s.count > 0
	s.open = true
	if s.appendMode {
		slog.Info(
			"resuming existing output file",
			"path", opts.Path,
			"existing_records", s.count,
		)
	}
	return s, nil
}

// recoverExisting parses pre-existing file content, fills seen/count and
// returns the byte prefix of the file that holds the still-valid
// unterminated array. recovered is false when the store should start a
// fresh file instead.
func (s *Store) recoverExisting(content []byte) (body []byte, recovered bool, err error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) {
		return nil, false, nil
	}

	// Only the tail is ever touched: trailing whitespace and at most
	// one closing bracket. Everything before that offset keeps its
	// exact bytes, so a `]` inside a committed record can not be
	// clipped by accident.
	body = bytes.TrimRight(content, " \t\r\n")
	if body[len(body)-1] == ']' {
		body = bytes.TrimRight(body[:len(body)-1], " \t\r\n")
	}

	var elements []json.RawMessage
	err = json.Unmarshal(append(append([]byte{}, body...), ']'), &elements)
	if err != nil {
		if s.opts.Recovery == RecoverFail {
			return nil, false, fmt.Errorf("existing output at %s is corrupted: %w", s.opts.Path, err)
		}
		slog.Warn(
			"existing output is corrupted, starting fresh",
			"path", s.opts.Path,
			"err", err,
		)
		return nil, false, nil
	}

	for _, raw := range elements {
		var record Record
		if json.Unmarshal(raw, &record) != nil {
			continue
		}
		key, _ := record[s.opts.KeyField].(string)
		if key == "" || key == Sentinel {
			continue
		}
		s.seen[key] = struct{}{}
	}
	s.count = len(elements)
	return body, true, nil
}

// Commit appends one record. It reports false without touching the file
// when the store is closed, the record has no usable key, or the key was
// already committed. A non-nil error means the write itself failed; the
// record is then not marked as seen and may be offered again.
func (s *Store) Commit(record Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return false, nil
	}
	key, _ := record[s.opts.KeyField].(string)
	if key == "" || key == Sentinel {
		return false, nil
	}
	if _, dup := s.seen[key]; dup {
		slog.Debug("duplicate record skipped", "key", key)
		return false, nil
	}

	element, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding record %q: %w", key, err)
	}

	var buf bytes.Buffer
	if s.count > 0 {
		buf.WriteString(",\n")
	}
	buf.Write(element)

	_, err = s.file.Write(buf.Bytes())
	if err == nil {
		err = s.file.Sync()
	}
	if err != nil {
		return false, fmt.Errorf("writing record %q: %w", key, err)
	}

	s.seen[key] = struct{}{}
	s.count++
	return true, nil
}

// Count returns the number of records committed so far, including any
// recovered from a pre-existing file.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Finalize closes the array so the file parses as complete JSON, writes
// the sidecar summary and closes the store. Calling it again returns
// the same summary without touching the file.
func (s *Store) Finalize() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return s.summary, nil
	}

	_, err := s.file.Write([]byte("\n]"))
	if err == nil {
		err = s.file.Sync()
	}
	if err != nil {
		return Summary{}, fmt.Errorf("closing array: %w", err)
	}
	err = s.file.Close()
	if err != nil {
		return Summary{}, fmt.Errorf("closing output: %w", err)
	}

	s.summary = Summary{
		TotalRecords:   s.count,
		OutputPath:     s.opts.Path,
		ExtractionDate: time.Now().Format("2006-01-02 15:04:05"),
		AppendMode:     s.appendMode,
	}
	s.open = false

	err = writeSummary(s.opts.Path, s.summary)
	if err != nil {
		return Summary{}, err
	}
	return s.summary, nil
}

// SummaryPath derives the sidecar summary filename for an output path.
func SummaryPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_summary.json"
}

func writeSummary(outputPath string, summary Summary) error {
	contents, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	err = os.WriteFile(SummaryPath(outputPath), contents, 0644)
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
