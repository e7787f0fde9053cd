package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/materialquote/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

// utf8BOM is written by Excel when saving CSV as UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser reads shop price sheets. The first non-blank row is the header.
type Parser struct{}

// NewParser creates a new sheet parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse picks a reader by file extension and returns one RawRow per non-blank data row
func (p *Parser) Parse(data []byte, fileName string) ([]domain.RawRow, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv", ".txt":
		return parseDelimited(data, ',')
	case ".tsv":
		return parseDelimited(data, '\t')
	case ".xlsx", ".xlsm":
		return parseWorkbook(data)
	case ".json":
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

func parseDelimited(data []byte, delimiter rune) ([]domain.RawRow, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8 text", domain.ErrCorruptFile)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
		}
		records = append(records, record)
	}

	return rowsFromRecords(records)
}

func parseWorkbook(data []byte) ([]domain.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrCorruptFile)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	return rowsFromRecords(records)
}

// parseJSON accepts an array of flat objects; non-string values are rendered as text
func parseJSON(data []byte) ([]domain.RawRow, error) {
	var objects []map[string]any
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	rows := make([]domain.RawRow, 0, len(objects))
	for _, obj := range objects {
		row := make(domain.RawRow, len(obj))
		for k, v := range obj {
			row[k] = jsonCell(v)
		}
		if !isBlankRow(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func jsonCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, jsonCell(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// rowsFromRecords uses the first non-blank record as header and maps the rest.
// Unnamed columns are dropped; short records leave missing cells empty.
func rowsFromRecords(records [][]string) ([]domain.RawRow, error) {
	headerIdx := -1
	for i, rec := range records {
		if !isBlankRecord(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return []domain.RawRow{}, nil
	}

	header := records[headerIdx]
	rows := make([]domain.RawRow, 0, len(records)-headerIdx-1)
	for _, rec := range records[headerIdx+1:] {
		if isBlankRecord(rec) {
			continue
		}
		row := make(domain.RawRow, len(header))
		for col, name := range header {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if col < len(rec) {
				row[name] = rec[col]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isBlankRow(row domain.RawRow) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
