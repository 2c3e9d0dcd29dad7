package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/sixmem/internal/model"
)

// SQLiteStore implements Store using SQLite, one table per dimension.
type SQLiteStore struct {
	db   *sql.DB
	path string

	core          *sqliteTable[model.CoreMemory]
	episodic      *sqliteTable[model.EpisodicMemory]
	semantic      *sqliteTable[model.SemanticMemory]
	relationships *sqliteRelationships
	procedural    *sqliteTable[model.ProceduralMemory]
	resources     *sqliteTable[model.ResourceMemory]
	knowledge     *sqliteTable[model.KnowledgeEntry]
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.core = &sqliteTable[model.CoreMemory]{db: db, codec: coreCodec}
	s.episodic = &sqliteTable[model.EpisodicMemory]{db: db, codec: episodicCodec}
	s.semantic = &sqliteTable[model.SemanticMemory]{db: db, codec: semanticCodec}
	s.relationships = &sqliteRelationships{sqliteTable[model.SemanticRelationship]{db: db, codec: relationshipCodec}}
	s.procedural = &sqliteTable[model.ProceduralMemory]{db: db, codec: proceduralCodec}
	s.resources = &sqliteTable[model.ResourceMemory]{db: db, codec: resourceCodec}
	s.knowledge = &sqliteTable[model.KnowledgeEntry]{db: db, codec: knowledgeCodec}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS core_memories (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		metadata      TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		persona_value TEXT NOT NULL DEFAULT '',
		persona_limit INTEGER NOT NULL,
		human_value   TEXT NOT NULL DEFAULT '',
		human_limit   INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_core_user ON core_memories(user_id);

	CREATE TABLE IF NOT EXISTS episodic_memories (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		metadata          TEXT,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		event_type        TEXT NOT NULL,
		summary           TEXT NOT NULL,
		details           TEXT NOT NULL DEFAULT '',
		actor             TEXT NOT NULL,
		tree_path         TEXT,
		occurred_at       TEXT NOT NULL,
		summary_embedding BLOB,
		details_embedding BLOB,
		seq               TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_episodic_user_occurred ON episodic_memories(user_id, occurred_at DESC);

	CREATE TABLE IF NOT EXISTS semantic_memories (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		metadata    TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		embedding   BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_semantic_user ON semantic_memories(user_id);

	CREATE TABLE IF NOT EXISTS semantic_relationships (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		metadata          TEXT,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		source_id         TEXT NOT NULL REFERENCES semantic_memories(id) ON DELETE CASCADE,
		target_id         TEXT NOT NULL REFERENCES semantic_memories(id) ON DELETE CASCADE,
		relationship_type TEXT NOT NULL,
		strength          REAL NOT NULL,
		CHECK (source_id <> target_id),
		CHECK (strength >= 0 AND strength <= 1)
	);
	CREATE INDEX IF NOT EXISTS idx_rel_source ON semantic_relationships(source_id);
	CREATE INDEX IF NOT EXISTS idx_rel_target ON semantic_relationships(target_id);

	CREATE TABLE IF NOT EXISTS procedural_memories (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		metadata         TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		procedure_name   TEXT NOT NULL,
		step_number      INTEGER NOT NULL CHECK (step_number >= 1),
		description      TEXT NOT NULL,
		conditions       TEXT,
		actions          TEXT,
		expected_results TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_procedural_name ON procedural_memories(user_id, procedure_name, step_number);

	CREATE TABLE IF NOT EXISTS resource_memories (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		metadata      TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		name          TEXT NOT NULL,
		location      TEXT NOT NULL,
		summary       TEXT NOT NULL DEFAULT '',
		tags          TEXT,
		accessed_at   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_resource_user ON resource_memories(user_id);

	CREATE TABLE IF NOT EXISTS knowledge_vault (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		metadata     TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		domain       TEXT NOT NULL,
		topic        TEXT NOT NULL,
		content      TEXT NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		confidence   REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		embedding    BLOB,
		validated_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_user ON knowledge_vault(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Core() Table[model.CoreMemory]             { return s.core }
func (s *SQLiteStore) Episodic() Table[model.EpisodicMemory]     { return s.episodic }
func (s *SQLiteStore) Semantic() Table[model.SemanticMemory]     { return s.semantic }
func (s *SQLiteStore) Relationships() RelationshipTable          { return s.relationships }
func (s *SQLiteStore) Procedural() Table[model.ProceduralMemory] { return s.procedural }
func (s *SQLiteStore) Resources() Table[model.ResourceMemory]    { return s.resources }
func (s *SQLiteStore) Knowledge() Table[model.KnowledgeEntry]    { return s.knowledge }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// codec maps one record type onto its table. columns lists the content
// columns that follow the shared base columns.
type codec[T model.Record] struct {
	dimension model.Dimension
	table     string
	columns   []string
	values    func(T) ([]any, error)
	scan      func(row scanner) (T, error)
}

var baseColumns = []string{"id", "user_id", "metadata", "created_at", "updated_at"}

func (c codec[T]) selectList() string {
	return strings.Join(append(append([]string{}, baseColumns...), c.columns...), ", ")
}

type sqliteTable[T model.Record] struct {
	db    *sql.DB
	codec codec[T]
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (t *sqliteTable[T]) storageErr(op string, err error) error {
	return &model.StorageError{Op: fmt.Sprintf("%s %s", op, t.codec.dimension), Err: err}
}

func (t *sqliteTable[T]) Insert(ctx context.Context, rec T) error {
	return t.insert(ctx, t.db, rec)
}

func (t *sqliteTable[T]) insert(ctx context.Context, db execer, rec T) error {
	base, err := baseValues(rec.Header())
	if err != nil {
		return t.storageErr("encode", err)
	}
	content, err := t.codec.values(rec)
	if err != nil {
		return t.storageErr("encode", err)
	}
	n := len(baseColumns) + len(t.codec.columns)
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		t.codec.table, t.codec.selectList(), strings.TrimSuffix(strings.Repeat("?, ", n), ", "))
	if _, err := db.ExecContext(ctx, query, append(base, content...)...); err != nil {
		return t.storageErr("insert", err)
	}
	return nil
}

func (t *sqliteTable[T]) Replace(ctx context.Context, rec T) (bool, error) {
	return t.replace(ctx, t.db, rec)
}

func (t *sqliteTable[T]) replace(ctx context.Context, db execer, rec T) (bool, error) {
	h := rec.Header()
	content, err := t.codec.values(rec)
	if err != nil {
		return false, t.storageErr("encode", err)
	}
	meta, err := encodeJSON(h.Metadata)
	if err != nil {
		return false, t.storageErr("encode", err)
	}
	sets := []string{"metadata = ?", "updated_at = ?"}
	for _, col := range t.codec.columns {
		sets = append(sets, col+" = ?")
	}
	args := append([]any{meta, formatTime(h.UpdatedAt)}, content...)
	args = append(args, h.ID, h.UserID)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ? AND user_id = ?`, t.codec.table, strings.Join(sets, ", "))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, t.storageErr("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, t.storageErr("update", err)
	}
	return n > 0, nil
}

func (t *sqliteTable[T]) Delete(ctx context.Context, userID, id string) (bool, error) {
	return t.delete(ctx, t.db, userID, id)
}

func (t *sqliteTable[T]) delete(ctx context.Context, db execer, userID, id string) (bool, error) {
	res, err := db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ?`, t.codec.table), id, userID)
	if err != nil {
		return false, t.storageErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, t.storageErr("delete", err)
	}
	return n > 0, nil
}

func (t *sqliteTable[T]) Write(ctx context.Context, b Batch[T]) error {
	if b.Empty() {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return t.storageErr("begin", err)
	}
	if err := t.write(ctx, tx, b); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return t.storageErr("commit", err)
	}
	return nil
}

func (t *sqliteTable[T]) write(ctx context.Context, tx *sql.Tx, b Batch[T]) error {
	for _, id := range b.Delete {
		if _, err := t.delete(ctx, tx, b.UserID, id); err != nil {
			return err
		}
	}
	for _, rec := range b.Replace {
		ok, err := t.replace(ctx, tx, rec)
		if err != nil {
			return err
		}
		if !ok {
			return &model.NotFoundError{Dimension: t.codec.dimension, ID: rec.Header().ID}
		}
	}
	for _, rec := range b.Insert {
		if err := t.insert(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTable[T]) Get(ctx context.Context, userID, id string) (T, bool, error) {
	row := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND user_id = ?`, t.codec.selectList(), t.codec.table),
		id, userID)
	rec, err := t.codec.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, t.storageErr("get", err)
	}
	return rec, true, nil
}

func (t *sqliteTable[T]) List(ctx context.Context, userID string) ([]T, error) {
	return t.query(ctx, "list",
		fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? ORDER BY rowid`, t.codec.selectList(), t.codec.table),
		userID)
}

func (t *sqliteTable[T]) Count(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.codec.table)
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	var n int
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, t.storageErr("count", err)
	}
	return n, nil
}

func (t *sqliteTable[T]) query(ctx context.Context, op, query string, args ...any) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.storageErr(op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := t.codec.scan(rows)
		if err != nil {
			return nil, t.storageErr(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.storageErr(op, err)
	}
	return out, nil
}

type sqliteRelationships struct {
	sqliteTable[model.SemanticRelationship]
}

func (t *sqliteRelationships) DeleteByNode(ctx context.Context, userID, nodeID string) (int, error) {
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM semantic_relationships WHERE user_id = ? AND (source_id = ? OR target_id = ?)`,
		userID, nodeID, nodeID)
	if err != nil {
		return 0, t.storageErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, t.storageErr("delete", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// baseRow receives the shared columns of every table.
type baseRow struct {
	id, userID           string
	metadata             sql.NullString
	createdAt, updatedAt string
}

func (b *baseRow) dest(content ...any) []any {
	return append([]any{&b.id, &b.userID, &b.metadata, &b.createdAt, &b.updatedAt}, content...)
}

func (b *baseRow) base() (model.Base, error) {
	out := model.Base{ID: b.id, UserID: b.userID}
	out.CreatedAt, _ = time.Parse(time.RFC3339Nano, b.createdAt)
	out.UpdatedAt, _ = time.Parse(time.RFC3339Nano, b.updatedAt)
	if b.metadata.Valid && b.metadata.String != "" {
		if err := json.Unmarshal([]byte(b.metadata.String), &out.Metadata); err != nil {
			return out, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return out, nil
}

func baseValues(b model.Base) ([]any, error) {
	meta, err := encodeJSON(b.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{b.ID, b.UserID, meta, formatTime(b.CreatedAt), formatTime(b.UpdatedAt)}, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// encodeJSON stores empty maps and slices as NULL.
func encodeJSON[V any](v V) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch string(b) {
	case "null", "{}", "[]":
		return nil, nil
	}
	s := string(b)
	return &s, nil
}

func decodeStrings(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
