package documents

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/soundprediction/go-evolsynth/pkg/types"
)

// ErrUnsupportedFormat is returned for files that are not plain text or Markdown.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists the file extensions the loader reads.
var SupportedExtensions = []string{".txt", ".md"}

// LoadFile reads a text or Markdown file as a document sourced from its base name.
func LoadFile(path string) (types.DocumentInput, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(SupportedExtensions, ext) {
		return types.DocumentInput{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.DocumentInput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return fromBytes(data, filepath.Base(path), map[string]interface{}{"path": path, "format": ext[1:]})
}

// LoadFiles loads every path. Files that fail are skipped and their errors joined.
func LoadFiles(paths []string) ([]types.DocumentInput, error) {
	var docs []types.DocumentInput
	var errs []error
	for _, p := range paths {
		doc, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errors.Join(errs...)
}

// LoadDir loads the supported files directly inside dir, in name order.
func LoadDir(dir string) ([]types.DocumentInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return LoadFiles(paths)
}

// EncodedFile is an uploaded file carried as base64.
type EncodedFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// LoadBase64 decodes uploaded files.
func LoadBase64(files []EncodedFile) ([]types.DocumentInput, error) {
	var docs []types.DocumentInput
	var errs []error
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Filename))
		if !slices.Contains(SupportedExtensions, ext) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Filename))
			continue
		}
		data, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to decode %s: %w", f.Filename, err))
			continue
		}
		doc, err := fromBytes(data, f.Filename, map[string]interface{}{"loaded_from": "base64", "format": ext[1:]})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errors.Join(errs...)
}

func fromBytes(data []byte, source string, meta map[string]interface{}) (types.DocumentInput, error) {
	if !utf8.Valid(data) {
		return types.DocumentInput{}, fmt.Errorf("%s is not valid UTF-8", source)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return types.DocumentInput{}, fmt.Errorf("%s is empty", source)
	}
	meta["source"] = source
	return types.DocumentInput{Content: content, Metadata: meta, Source: source}, nil
}

// Summary describes a set of documents.
type Summary struct {
	TotalDocuments    int      `json:"total_documents"`
	TotalCharacters   int      `json:"total_characters"`
	AverageCharacters float64  `json:"average_characters"`
	Sources           []string `json:"sources"`
}

// Summarize counts characters and distinct sources.
func Summarize(docs []types.DocumentInput) Summary {
	s := Summary{TotalDocuments: len(docs), Sources: []string{}}
	seen := make(map[string]bool)
	for i, d := range docs {
		s.TotalCharacters += utf8.RuneCountInString(d.Content)
		if src := d.SourceName(i); !seen[src] {
			seen[src] = true
			s.Sources = append(s.Sources, src)
		}
	}
	if len(docs) > 0 {
		s.AverageCharacters = float64(s.TotalCharacters) / float64(len(docs))
	}
	return s
}

// SampleDocuments returns a small built-in corpus for trying the pipeline.
func SampleDocuments() []types.DocumentInput {
	return []types.DocumentInput{
		{
			Content: "Federal student loan programs provide funding for undergraduate and graduate students pursuing higher education. " +
				"These programs include Direct Subsidized Loans, Direct Unsubsidized Loans, and Direct PLUS Loans. " +
				"Eligibility requirements vary by program and include enrollment in an eligible degree program, satisfactory academic progress, and completion of the FAFSA application.",
			Metadata: map[string]interface{}{"type": "sample"},
			Source:   "sample_federal_loans.txt",
		},
		{
			Content: "The Pell Grant is a federal financial aid program that provides need-based grants to undergraduate students. " +
				"Unlike loans, Pell Grants do not need to be repaid. " +
				"The amount of the grant depends on financial need, cost of attendance, enrollment status, and length of the academic program. " +
				"Students must maintain satisfactory academic progress to continue receiving Pell Grant funding.",
			Metadata: map[string]interface{}{"type": "sample"},
			Source:   "sample_pell_grants.txt",
		},
		{
			Content: "Academic calendars determine the timing and structure of financial aid disbursements throughout the academic year. " +
				"Students enrolled in traditional semester or quarter systems receive aid disbursements at the beginning of each term. " +
				"For students in non-traditional or accelerated programs, disbursement schedules may vary based on the specific academic calendar and program requirements.",
			Metadata: map[string]interface{}{"type": "sample"},
			Source:   "sample_academic_calendar.txt",
		},
	}
}
