package testsupport

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"perapera/internal/document"
)

// TextRow is one row of the master text table.
type TextRow struct {
	Category int
	Index    int
	Text     string
}

// WriteMetaDB creates a plaintext asset index at path. A zero cipher key is
// stored as NULL. An empty platform writes no marker row.
func WriteMetaDB(t testing.TB, path, platform string, records ...document.AssetRecord) {
	t.Helper()

	db := createDB(t, path,
		"CREATE TABLE a (i INTEGER PRIMARY KEY, n TEXT NOT NULL, h TEXT NOT NULL, e INTEGER)",
		"CREATE TABLE c (n TEXT NOT NULL)",
	)
	defer db.Close()

	for _, rec := range records {
		var key any
		if rec.CipherKey != 0 {
			key = rec.CipherKey
		}
		if _, err := db.Exec("INSERT INTO a (n, h, e) VALUES (?, ?, ?)", rec.Name, rec.ContentHash, key); err != nil {
			t.Fatalf("insert asset %s: %v", rec.Name, err)
		}
	}
	if platform != "" {
		if _, err := db.Exec("INSERT INTO c (n) VALUES (?)", "//"+platform); err != nil {
			t.Fatalf("insert platform marker: %v", err)
		}
	}
}

// WriteMasterDB creates a master database holding the given text rows.
func WriteMasterDB(t testing.TB, path string, rows ...TextRow) {
	t.Helper()

	db := createDB(t, path,
		`CREATE TABLE text_data (id INTEGER, category INTEGER, "index" INTEGER, text TEXT)`,
	)
	defer db.Close()

	for _, row := range rows {
		if _, err := db.Exec(`INSERT INTO text_data (id, category, "index", text) VALUES (?, ?, ?, ?)`, row.Category, row.Category, row.Index, row.Text); err != nil {
			t.Fatalf("insert text row: %v", err)
		}
	}
}

func createDB(t testing.TB, path string, schema ...string) *sql.DB {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			t.Fatalf("apply schema %q: %v", stmt, err)
		}
	}
	return db
}
