package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RowReader decodes a tabular upload into row records keyed by the header
// row's field names.
type RowReader interface {
	Parse(r io.Reader) ([]map[string]string, error)
}

// ParseError reports an unreadable or structurally broken upload.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// CSVReader reads comma-separated uploads. The first row names the fields;
// ragged data rows are tolerated (missing cells read as empty).
type CSVReader struct{}

func (CSVReader) Parse(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Reason: "empty file"}
	}
	if err != nil {
		return nil, &ParseError{Reason: "unreadable header", Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "unreadable row", Err: err}
		}
		if isBlank(record) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
