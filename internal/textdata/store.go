package textdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"perapera/internal/config"
	"perapera/internal/logging"
	"perapera/internal/services"
)

// Well-known text_data categories.
const (
	CategoryCharacterName = 6
	CategoryStoryEvent    = 119
)

// Entry is one text_data row.
type Entry struct {
	Category int    `json:"category"`
	Index    int    `json:"index"`
	Text     string `json:"text"`
}

// Table is a full dump of one master table.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Store is a read-only view of the master database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the configured master database read-only.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	path := cfg.MasterPath()
	if _, err := os.Stat(path); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "textdata", "open master", "Master database is not readable; check paths.game_data_dir", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "textdata", "open sqlite", "Master database could not be opened", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1 FROM text_data LIMIT 1").Scan(&one); err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = db.Close()
		return nil, services.Wrap(services.ErrDecode, "textdata", "open", "Master database has no readable text_data table", err)
	}
	return &Store{db: db, logger: logging.NewComponentLogger(logger, "textdata")}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Category returns every index to text mapping of one category.
func (s *Store) Category(ctx context.Context, category int) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "index", "text" FROM text_data WHERE "category" = ?`, category)
	if err != nil {
		return nil, fmt.Errorf("query category %d: %w", category, err)
	}
	defer rows.Close()
	out := make(map[int]string)
	for rows.Next() {
		var (
			index int
			text  sql.NullString
		)
		if err := rows.Scan(&index, &text); err != nil {
			return nil, fmt.Errorf("scan category %d: %w", category, err)
		}
		out[index] = text.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan category %d: %w", category, err)
	}
	s.logger.Debug("text category loaded", logging.Int("category", category), logging.Int("entries", len(out)))
	return out, nil
}

// Search returns rows of category whose text contains term.
func (s *Store) Search(ctx context.Context, category int, term string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT "index", "text" FROM text_data WHERE "category" = ? AND instr("text", ?) > 0 ORDER BY "index"`,
		category, term)
	if err != nil {
		return nil, fmt.Errorf("search category %d: %w", category, err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		entry := Entry{Category: category}
		if err := rows.Scan(&entry.Index, &entry.Text); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// dumpSchemas names the columns dumped for the translatable tables: keys
// first, text last. Other tables dump every column.
var dumpSchemas = map[string][]string{
	"text_data":             {"category", "index", "text"},
	"character_system_text": {"character_id", "voice_id", "text"},
	"race_jikkyo_comment":   {"id", "message"},
	"race_jikkyo_message":   {"id", "message"},
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DumpTable returns every row of a master table. The name must match an
// existing table exactly.
func (s *Store) DumpTable(ctx context.Context, table string) (*Table, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrValidation, "textdata", "dump table", fmt.Sprintf("Table %q does not exist", table), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("look up table %s: %w", table, err)
	}

	columns := "*"
	if schema, ok := dumpSchemas[name]; ok {
		quoted := make([]string, len(schema))
		for i, col := range schema {
			quoted[i] = quoteIdent(col)
		}
		columns = strings.Join(quoted, ", ")
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM "+quoteIdent(name))
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dump %s columns: %w", name, err)
	}
	out := &Table{Name: name, Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dump %s row: %w", name, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	return out, rows.Err()
}
