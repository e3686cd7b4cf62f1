// Package database implements the search backend on SQLite with FTS5.
//
// Every document is a row of search_documents holding its filterable values as JSON;
// searchable text lives in one FTS5 table per object type sharing the row's rowid.
// Filters compile to json_each EXISTS sub-queries and text matches to FTS5 MATCH
// membership tests scored with bm25.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// Name is the backend name.
const Name = "database"

// Config configures the database backend.
type Config struct {
	// Path of the SQLite file; empty or ":memory:" for a private in-memory database.
	Path      string
	MaxConns  int
	BatchSize int
	Limits    query.Limits
}

// Backend is the SQLite search backend.
type Backend struct {
	db        *sql.DB
	types     *backend.Types
	guard     *lifecycle.Guard
	limits    query.Limits
	batchSize int
	logger    *zap.Logger
}

var _ backend.Backend = (*Backend)(nil)

// New opens the database and creates the shared tables.
func New(cfg Config, guard *lifecycle.Guard, logger *zap.Logger) (*Backend, error) {
	db, err := open(cfg.Path, cfg.MaxConns)
	if err != nil {
		return nil, domain.Unavailable(Name, "open", err)
	}
	if guard == nil {
		guard = lifecycle.NewGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limits.MaxLimit == 0 {
		cfg.Limits = query.DefaultLimits()
	}
	return &Backend{
		db:        db,
		types:     backend.NewTypes(),
		guard:     guard,
		limits:    cfg.Limits,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}, nil
}

// Name returns "database".
func (b *Backend) Name() string { return Name }

// Ping checks the database connection.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return domain.Unavailable(Name, "ping", err)
	}
	return nil
}

// EnsureSchema creates one FTS5 table per type. A type whose searchable columns changed
// since the last run gets a fresh, empty table and needs a rebuild.
func (b *Backend) EnsureSchema(ctx context.Context, types []schema.ObjectType) error {
	for _, ot := range types {
		if err := b.ensureType(ctx, ot); err != nil {
			return domain.Unavailable(Name, "ensure_schema", fmt.Errorf("%s: %w", ot.Key(), err))
		}
		b.types.Add(ot)
	}
	return nil
}

func (b *Backend) ensureType(ctx context.Context, ot schema.ObjectType) error {
	columns := searchColumns(ot)
	signature := strings.Join(columns, ",") + "|" + ftsTokenizer

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT columns FROM search_schema WHERE object_type = ?`, ot.Key()).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read schema: %w", err)
	case stored != signature:
		b.logger.Warn("Searchable fields changed, index reset; rebuild required",
			zap.String("object_type", ot.Key()),
			zap.String("old_columns", stored),
			zap.String("new_columns", signature),
		)
		if err := dropFTS(ctx, tx, ot.Key()); err != nil {
			return fmt.Errorf("drop fts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM search_documents WHERE object_type = ?`, ot.Key()); err != nil {
			return fmt.Errorf("reset documents: %w", err)
		}
	}

	if err := createFTS(ctx, tx, ot.Key(), columns); err != nil {
		return fmt.Errorf("create fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_schema (object_type, columns) VALUES (?, ?)
		 ON CONFLICT(object_type) DO UPDATE SET columns = excluded.columns`,
		ot.Key(), signature,
	); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return tx.Commit()
}

// PutDocument upserts a document; visible immediately after commit.
func (b *Backend) PutDocument(ctx context.Context, doc document.Document) error {
	ot, err := b.types.Get(doc.Type())
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(Name, "put", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := b.write(ctx, tx, ot, doc); err != nil {
		return domain.Unavailable(Name, "put", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(Name, "put", err)
	}
	return nil
}

// write replaces the row and FTS entry of doc inside tx.
func (b *Backend) write(ctx context.Context, tx *sql.Tx, ot schema.ObjectType, doc document.Document) error {
	data, err := encodeData(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.ID(), err)
	}

	var rowid int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO search_documents (doc_id, object_type, data) VALUES (?, ?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET data = excluded.data
		 RETURNING rowid`,
		doc.ID(), doc.Type(), data,
	).Scan(&rowid)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", doc.ID(), err)
	}

	columns := searchColumns(ot)
	if len(columns) == 0 {
		return nil
	}
	fts := ftsTable(ot.Key())
	// FTS5 has no upsert
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+fts+" WHERE rowid = ?", rowid); err != nil {
		return fmt.Errorf("clear fts %s: %w", doc.ID(), err)
	}

	args := make([]any, 0, len(columns)+1)
	args = append(args, rowid)
	marks := make([]string, 0, len(columns)+1)
	marks = append(marks, "?")
	for _, col := range columns {
		text := ""
		if f, ok := doc.Field(col); ok {
			text = strings.Join(query.Tokenize(f.Text()), " ")
		}
		args = append(args, text)
		marks = append(marks, "?")
	}
	stmt := fmt.Sprintf("INSERT INTO %s (rowid, %s) VALUES (%s)", fts, strings.Join(columns, ", "), strings.Join(marks, ", "))
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("index %s: %w", doc.ID(), err)
	}
	return nil
}

// DeleteDocument removes a document. Unknown ids are a no-op.
func (b *Backend) DeleteDocument(ctx context.Context, id string) error {
	objectType, _, err := document.ParseID(id)
	if err != nil {
		return domain.NewConfigError(Name, "%v", err)
	}
	ot, err := b.types.Get(objectType)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(Name, "delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rowid int64
	err = tx.QueryRowContext(ctx,
		`DELETE FROM search_documents WHERE doc_id = ? RETURNING rowid`, id,
	).Scan(&rowid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return domain.Unavailable(Name, "delete", err)
	}
	if len(searchColumns(ot)) > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+ftsTable(objectType)+" WHERE rowid = ?", rowid); err != nil {
			return domain.Unavailable(Name, "delete", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(Name, "delete", err)
	}
	return nil
}

// BulkRebuild replaces every document of objectType inside one transaction. Readers on
// other connections keep seeing the previous rows until commit.
func (b *Backend) BulkRebuild(ctx context.Context, objectType string, docs document.Stream) (err error) {
	ot, err := b.types.Get(objectType)
	if err != nil {
		return err
	}
	release, err := b.guard.Acquire(objectType)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(Name, "bulk_rebuild", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
			}
		}
	}()

	if len(searchColumns(ot)) > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+ftsTable(objectType)); err != nil {
			return domain.Unavailable(Name, "bulk_rebuild", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_documents WHERE object_type = ?`, objectType); err != nil {
		return domain.Unavailable(Name, "bulk_rebuild", err)
	}

	count := 0
	err = lifecycle.Batches(ctx, docs, b.batchSize, func(batch []document.Document) error {
		for _, doc := range batch {
			if doc.Type() != objectType {
				return fmt.Errorf("document %s does not belong to %s", doc.ID(), objectType)
			}
			if werr := b.write(ctx, tx, ot, doc); werr != nil {
				return domain.Unavailable(Name, "bulk_rebuild", werr)
			}
		}
		count += len(batch)
		return nil
	})
	if err != nil {
		b.logger.Error("Rebuild rolled back", zap.String("object_type", objectType), zap.Error(err))
		return fmt.Errorf("rebuild %s: %w", objectType, err)
	}
	if err = tx.Commit(); err != nil {
		return domain.Unavailable(Name, "bulk_rebuild", err)
	}

	b.logger.Info("Index rebuilt",
		zap.String("object_type", objectType),
		zap.Int("documents", count),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Drop deletes the type's rows, FTS table and schema record. The type is unknown afterwards.
func (b *Backend) Drop(ctx context.Context, objectType string) (err error) {
	if _, err := b.types.Get(objectType); err != nil {
		return err
	}
	release, err := b.guard.Acquire(objectType)
	if err != nil {
		return err
	}
	defer release()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(Name, "drop", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := dropFTS(ctx, tx, objectType); err != nil {
		return domain.Unavailable(Name, "drop", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_documents WHERE object_type = ?`, objectType); err != nil {
		return domain.Unavailable(Name, "drop", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_schema WHERE object_type = ?`, objectType); err != nil {
		return domain.Unavailable(Name, "drop", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(Name, "drop", err)
	}
	b.types.Remove(objectType)
	b.logger.Info("Index dropped", zap.String("object_type", objectType))
	return nil
}

// Search runs q against objectType.
func (b *Backend) Search(ctx context.Context, objectType string, q query.Node) (result.SearchResult, error) {
	plan, ot, err := b.types.Prepare(objectType, q, b.limits)
	if err != nil {
		return result.SearchResult{}, err
	}
	c, err := compile(plan, ot)
	if err != nil {
		return result.SearchResult{}, err
	}

	var total int
	if err := b.db.QueryRowContext(ctx, c.countSQL, c.countArgs...).Scan(&total); err != nil {
		return result.SearchResult{}, domain.Unavailable(Name, "search", err)
	}
	if plan.Offset >= total {
		return result.Empty(total), nil
	}

	rows, err := b.db.QueryContext(ctx, c.selectSQL, c.selectArgs...)
	if err != nil {
		return result.SearchResult{}, domain.Unavailable(Name, "search", err)
	}
	defer rows.Close()

	hits := make([]result.Hit, 0, plan.Limit)
	for rows.Next() {
		var h result.Hit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return result.SearchResult{}, domain.Unavailable(Name, "search", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return result.SearchResult{}, domain.Unavailable(Name, "search", err)
	}
	return result.SearchResult{Hits: hits, Total: total}, nil
}

// Refresh is a no-op: committed writes are immediately visible.
func (b *Backend) Refresh(_ context.Context, objectType string) error {
	_, err := b.types.Get(objectType)
	return err
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// States reports every known type as live, or building while a rebuild holds its guard.
func (b *Backend) States() []lifecycle.Status {
	var out []lifecycle.Status
	for _, key := range b.types.Keys() {
		st := lifecycle.Status{ObjectType: key, State: lifecycle.Live}
		if b.guard.Active(key) {
			st.State = lifecycle.Building
		}
		out = append(out, st)
	}
	return out
}

func searchColumns(ot schema.ObjectType) []string {
	fields := ot.SearchableFields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// encodeData renders filterable and related-id values as a JSON object. Booleans stay
// JSON booleans (json_each reads them as 0/1) and times become Unix milliseconds.
func encodeData(doc document.Document) (string, error) {
	data := make(map[string]any)
	for _, f := range doc.Fields() {
		if f.Kind != schema.Filterable && f.Kind != schema.RelatedID {
			continue
		}
		if t, ok := f.Value.(time.Time); ok {
			data[f.Name] = t.UnixMilli()
			continue
		}
		data[f.Name] = f.Value
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
