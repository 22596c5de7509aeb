package prox

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"patron-sync/pkg/errors"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Report is a badge report with its preamble already consumed.
type Report struct {
	Layout Layout
	Rows   [][]string
	// FirstLine is the 1-based line number of Rows[0].
	FirstLine int
}

type ParsingStrategy interface {
	Accepts(data []byte) bool
	Parse(name string, data []byte) (*Report, error)
}

type CSVStrategy struct{}

func NewCSVStrategy() ParsingStrategy {
	return &CSVStrategy{}
}

// Accepts is the fallback for anything that is not a workbook.
func (s *CSVStrategy) Accepts(data []byte) bool {
	return true
}

func (s *CSVStrategy) Parse(name string, data []byte) (*Report, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	reader := bufio.NewReader(bytes.NewReader(text))
	firstLine, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	layout, err := DetectLayout(name, firstLine)
	if err != nil {
		return nil, err
	}

	// The preamble can contain blank lines, which csv.Reader would drop, so
	// it is consumed line by line.
	for i := 1; i < layout.Skip; i++ {
		if _, err := reader.ReadString('\n'); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return &Report{
		Layout:    layout,
		Rows:      rows,
		FirstLine: layout.Skip + 1,
	}, nil
}

type XLSXStrategy struct{}

func NewXLSXStrategy() ParsingStrategy {
	return &XLSXStrategy{}
}

var zipMagic = []byte("PK\x03\x04")

func (s *XLSXStrategy) Accepts(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

func (s *XLSXStrategy) Parse(name string, data []byte) (*Report, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewFormatError(name, "")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewFormatError(name, "")
	}

	layout, err := DetectLayout(name, strings.Join(rows[0], ","))
	if err != nil {
		return nil, err
	}

	var dataRows [][]string
	if len(rows) > layout.Skip {
		dataRows = rows[layout.Skip:]
	}

	return &Report{
		Layout:    layout,
		Rows:      dataRows,
		FirstLine: layout.Skip + 1,
	}, nil
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText converts a report to UTF-8. A BOM selects UTF-8 or UTF-16;
// without one, valid UTF-8 passes through and anything else is read as
// Latin-1, which is what the access system emits on older exports.
func decodeText(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, bomUTF8) || bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return decoded, err
	}
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}
