package store

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"
)

// tableSchemas defines the CSV-backed tables and their column order.
// Each table is loaded from <directory>/<table>.csv.
var tableSchemas = []struct {
	name    string
	columns []string
}{
	{"vulnerabilities", []string{
		"cve_id",
		"package_id",
		"vulnerability_type_id",
		"severity_id",
		"cvss_score",
		"affected_versions",
		"fixed_version",
		"description",
		"published_date",
	}},
	{"packages", []string{"package_id", "name", "ecosystem"}},
	{"severity_levels", []string{"severity_id", "severity_name", "min_cvss", "max_cvss"}},
	{"vulnerability_types", []string{"type_id", "type_name", "description"}},
}

// Store holds the vulnerability database in an in-memory SQLite
// instance loaded from CSV exports.
type Store struct {
	db     *sql.DB
	logger arbor.ILogger
}

// NewStore loads the CSV files from directory into SQLite.
// Required files: vulnerabilities.csv, packages.csv, severity_levels.csv,
// vulnerability_types.csv.
func NewStore(directory string, logger arbor.ILogger) (*Store, error) {
	info, err := os.Stat(directory)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("CSV directory not found: %s", directory)
	}

	for _, table := range tableSchemas {
		csvPath := filepath.Join(directory, table.name+".csv")
		if _, err := os.Stat(csvPath); err != nil {
			return nil, fmt.Errorf("required file not found: %s", csvPath)
		}
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every pool connection gets its own empty in-memory database, so
	// the pool must be pinned to a single connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.loadData(directory); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// loadData creates all tables and loads their CSV files
func (s *Store) loadData(directory string) error {
	for _, table := range tableSchemas {
		createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", table.name, strings.Join(table.columns, ", "))
		if _, err := s.db.Exec(createStmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}

		csvPath := filepath.Join(directory, table.name+".csv")
		count, err := s.loadCSV(csvPath, table.name, table.columns)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", csvPath, err)
		}

		s.logger.Debug().
			Str("table", table.name).
			Int("rows", count).
			Msg("CSV table loaded")
	}
	return nil
}

// loadCSV inserts all rows from a CSV file, mapping columns by header
// name so the CSV column order doesn't have to match the schema.
func (s *Store) loadCSV(path, table string, columns []string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	headerIdx := make(map[string]int, len(header))
	for i, name := range header {
		headerIdx[strings.TrimSpace(name)] = i
	}
	for _, col := range columns {
		if _, ok := headerIdx[col]; !ok {
			return 0, fmt.Errorf("missing column '%s' in CSV header", col)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertStmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders)

	stmt, err := s.db.Prepare(insertStmt)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read CSV row: %w", err)
		}

		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = record[headerIdx[col]]
		}
		if _, err := stmt.Exec(values...); err != nil {
			return count, fmt.Errorf("failed to insert row: %w", err)
		}
		count++
	}

	return count, nil
}

// SchemaDescription renders the table layout and supported operations
// for inclusion in classification prompts.
func SchemaDescription() string {
	lines := []string{"Schema:"}
	for _, table := range tableSchemas {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", table.name, strings.Join(table.columns, ", ")))
	}
	lines = append(lines, "", strings.TrimSpace(`
Available operations:
- Look up specific CVE details
- Search/filter vulnerabilities by ecosystem, severity, type, CVSS range
- List packages by ecosystem
- Get statistics grouped by ecosystem, severity, or type`))
	return strings.Join(lines, "\n")
}

// SchemaDescription implements the StructuredStore interface
func (s *Store) SchemaDescription() string {
	return SchemaDescription()
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// rowsToMaps converts sql.Rows into ordered column/value maps with all
// values as strings or numbers suitable for JSON output.
func rowsToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
