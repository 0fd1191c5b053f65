package rowsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource streams rows from a comma-separated file whose first line names
// the columns.
type CSVSource struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
}

func OpenCSV(path string) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	s := &CSVSource{file: file}
	if err := s.readHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

func (s *CSVSource) readHeader() error {
	s.reader = csv.NewReader(s.file)
	s.reader.FieldsPerRecord = -1 // Ragged exports are common; short rows just miss columns

	record, err := s.reader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	s.headers = make([]string, len(record))
	for i, h := range record {
		s.headers[i] = canonicalKey(h)
	}
	return nil
}

func (s *CSVSource) Next() (Row, error) {
	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	row := make(Row, len(s.headers))
	for i, header := range s.headers {
		if i < len(record) {
			row[header] = record[i]
		}
	}
	return row, nil
}

func (s *CSVSource) Reset() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return s.readHeader()
}

func (s *CSVSource) Close() error {
	return s.file.Close()
}
