// Package adapters turns heterogeneous transcript files into canonical
// documents. Adapters are stateless: the orchestration core never branches on
// the input format, it only sees documents.
package adapters

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/transcriptops/redactor/pkg/config"
	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
)

// AdapterError marks a malformed or unmappable input file. It is recorded
// against the file and never retried.
type AdapterError struct {
	Path string
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter error for %s: %v", e.Path, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Parser dispatches input files to the CSV or JSON adapter based on their
// extension.
type Parser struct {
	csvDelimiter rune
	json         config.JSONMappingConfig
	logger       logger.Logger
}

// NewParser creates a parser from the runner configuration.
func NewParser(cfg *config.Config, log logger.Logger) *Parser {
	return &Parser{
		csvDelimiter: cfg.CSVDelimiter,
		json:         cfg.JSONMapping,
		logger:       log,
	}
}

// Supported reports whether the file name has an extension an adapter can
// handle.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".json":
		return true
	}
	return false
}

// Parse reads one input file and returns its documents. A CSV file always
// yields one document; a JSON file may yield several in multi-document mode.
func (p *Parser) Parse(path string) ([]*models.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		doc, err := p.parseCSV(path)
		if err != nil {
			return nil, err
		}
		return []*models.Document{doc}, nil
	case ".json":
		return p.parseJSON(path)
	}
	return nil, &AdapterError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
}

// baseID strips the directory and extension from an input path.
func baseID(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
