package rowsource

import (
	"database/sql"
	"fmt"
	"io"

	_ "github.com/glebarez/go-sqlite"
)

// Tables a foreign database scan may read. The table name ends up in the
// query text, so it is checked against this list instead of interpolated
// from caller input.
var allowedTables = map[string]bool{
	"stock": true,
	"sales": true,
}

// SQLiteSource scans one table of an uploaded SQLite database, the sync
// format the legacy point-of-sale system shipped.
type SQLiteSource struct {
	db      *sql.DB
	table   string
	rows    *sql.Rows
	columns []string
}

func OpenSQLite(path, table string) (*SQLiteSource, error) {
	if !allowedTables[table] {
		return nil, fmt.Errorf("unsupported table: %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &SQLiteSource{db: db, table: table}
	if err := s.query(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSource) query() error {
	rows, err := s.db.Query("SELECT * FROM " + s.table)
	if err != nil {
		return fmt.Errorf("scan table %s: %w", s.table, err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return err
	}

	s.rows = rows
	s.columns = make([]string, len(columns))
	for i, c := range columns {
		s.columns[i] = canonicalKey(c)
	}
	return nil
}

func (s *SQLiteSource) Next() (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	values := make([]sql.NullString, len(s.columns))
	scanArgs := make([]interface{}, len(s.columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := s.rows.Scan(scanArgs...); err != nil {
		return nil, err
	}

	row := make(Row, len(s.columns))
	for i, column := range s.columns {
		if values[i].Valid {
			row[column] = values[i].String
		}
	}
	return row, nil
}

func (s *SQLiteSource) Reset() error {
	s.rows.Close()
	return s.query()
}

func (s *SQLiteSource) Close() error {
	if s.rows != nil {
		s.rows.Close()
	}
	return s.db.Close()
}
