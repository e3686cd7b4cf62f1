package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver with FTS5
)

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"temp_store(MEMORY)",
}

// open opens the SQLite database at path. An empty path or ":memory:" opens a private
// in-memory database on a single connection.
func open(path string, maxConns int) (*sql.DB, error) {
	var dsn string
	inMemory := path == "" || path == ":memory:"
	if inMemory {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
		params := make([]string, 0, len(pragmas)+1)
		for _, p := range pragmas {
			params = append(params, "_pragma="+p)
		}
		params = append(params, "_txlock=immediate")
		dsn = "file:" + path + "?" + strings.Join(params, "&")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if inMemory || maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(baseSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS search_documents (
	doc_id      TEXT PRIMARY KEY,
	object_type TEXT NOT NULL,
	data        TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS search_documents_object_type ON search_documents(object_type);

CREATE TABLE IF NOT EXISTS search_schema (
	object_type TEXT PRIMARY KEY,
	columns     TEXT NOT NULL
);
`

// ftsTokenizer splits only at spaces and punctuation. Text is written already split by
// query.Tokenize, so punctuation that stays inside a word (don't, 3.14, snake_case) is a
// token character, and accents are kept as written.
const ftsTokenizer = "unicode61 remove_diacritics 0 tokenchars '''.:,;_‘’·‧'"

func createFTS(ctx context.Context, tx *sql.Tx, objectType string, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(%s, tokenize = "%s")`,
		ftsTable(objectType), strings.Join(columns, ", "), ftsTokenizer)
	_, err := tx.ExecContext(ctx, stmt)
	return err
}

func dropFTS(ctx context.Context, tx *sql.Tx, objectType string) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ftsTable(objectType))
	return err
}
