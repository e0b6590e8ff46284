// Package importer bulk-creates discount rules from gzipped JSON-lines files
// kept on local disk or in S3.
package importer

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"discount-rules/internal/model"

	"github.com/rs/zerolog"
)

// Record is one non-blank line of an import file.
// Err is set when the line could not be decoded into a RuleInput.
type Record struct {
	Line  int
	Input model.RuleInput
	Err   error
}

// Loader reads an import file into records.
type Loader interface {
	// Load reads a gzipped JSON-lines file. A line that fails to decode does
	// not fail the load; it is returned as a record carrying the error.
	Load(ctx context.Context, name string) ([]Record, error)
}

// fileLoader implements Loader for files on the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based rule loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "rule-file-loader").Logger(),
	}
}

// Load reads a gzipped rule file from disk.
func (l *fileLoader) Load(ctx context.Context, filePath string) ([]Record, error) {
	l.logger.Info().Str("file", filePath).Msg("loading rule file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open rule file")
		return nil, fmt.Errorf("failed to open rule file %s: %w", filePath, err)
	}
	defer file.Close()

	records, err := readRecords(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to read rule file")
		return nil, fmt.Errorf("rule file %s: %w", filePath, err)
	}

	l.logger.Info().
		Str("file", filePath).
		Int("records", len(records)).
		Msg("rule file loaded successfully")

	return records, nil
}

// maxLineSize bounds a single JSON rule definition.
const maxLineSize = 1024 * 1024

// readRecords decompresses r and decodes one RuleInput per non-blank line.
func readRecords(ctx context.Context, r io.Reader) ([]Record, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++

		// Check context cancellation periodically
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		rec := Record{Line: line}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec.Input); err != nil {
			rec.Err = fmt.Errorf("malformed rule definition: %w", err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading rules: %w", err)
	}

	return records, nil
}
