package rowsource

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelSource reads rows from the first sheet of an .xlsx workbook. The
// first row names the columns, matching how the legacy exports were laid out.
type ExcelSource struct {
	file    *excelize.File
	headers []string
	rows    [][]string
	pos     int
}

func OpenExcel(path string) (*ExcelSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		f.Close()
		return nil, fmt.Errorf("sheet %q has no header row", sheets[0])
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = canonicalKey(h)
	}

	return &ExcelSource{
		file:    f,
		headers: headers,
		rows:    rows[1:],
	}, nil
}

func (s *ExcelSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}

	record := s.rows[s.pos]
	s.pos++

	row := make(Row, len(s.headers))
	for i, header := range s.headers {
		if i < len(record) {
			row[header] = record[i]
		}
	}
	return row, nil
}

func (s *ExcelSource) Reset() error {
	s.pos = 0
	return nil
}

func (s *ExcelSource) Close() error {
	return s.file.Close()
}
