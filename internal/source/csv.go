// Package source loads documents from external sources into rag.Document
// values. The only built-in source is a CSV file of FAQ rows, where each row
// holds a question and its answer. The question text becomes both the
// document ID and the indexable text; the answer travels as metadata so the
// prompt context stays focused on what users actually ask.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// FAQConfig describes a CSV FAQ source.
type FAQConfig struct {
	// Path is the CSV file location.
	Path string

	// QuestionColumn is the zero-based index of the question column.
	QuestionColumn int

	// AnswerColumn is the zero-based index of the answer column.
	AnswerColumn int

	// MaxDocuments caps the number of rows loaded. Zero or negative means
	// no limit.
	MaxDocuments int
}

// LoadFAQ reads the CSV file and returns one Document per data row.
// The first row is treated as a header and discarded. Failures wrap
// rag.ErrDocumentLoad so callers can classify them.
func LoadFAQ(cfg FAQConfig) ([]rag.Document, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrDocumentLoad, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Rows may have trailing columns beyond question/answer; accept them.
	r.FieldsPerRecord = -1

	// Discard the header row.
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", rag.ErrDocumentLoad, cfg.Path)
		}
		return nil, fmt.Errorf("%w: reading header of %s: %v", rag.ErrDocumentLoad, cfg.Path, err)
	}

	minColumns := cfg.QuestionColumn
	if cfg.AnswerColumn > minColumns {
		minColumns = cfg.AnswerColumn
	}
	minColumns++

	var docs []rag.Document
	for {
		if cfg.MaxDocuments > 0 && len(docs) >= cfg.MaxDocuments {
			break
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", rag.ErrDocumentLoad, cfg.Path, err)
		}
		if len(row) < minColumns {
			return nil, fmt.Errorf("%w: row %d of %s has %d columns, need %d",
				rag.ErrDocumentLoad, len(docs)+2, cfg.Path, len(row), minColumns)
		}

		question := row[cfg.QuestionColumn]
		docs = append(docs, rag.Document{
			ID:       question,
			Text:     question,
			Metadata: map[string]string{"answer": row[cfg.AnswerColumn]},
		})
	}

	return docs, nil
}
