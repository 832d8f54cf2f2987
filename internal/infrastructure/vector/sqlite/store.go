// Package sqlite is an embedded, file-backed vector store. Vectors are kept
// as little-endian float32 blobs and ranked by cosine distance in memory,
// which is adequate for the few hundred clauses of a single contract.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    dimension INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS points (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    text TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    vector BLOB NOT NULL,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_points_collection ON points(collection);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vector store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	// Serialise writers; sqlite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init vector store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections (name, dimension) VALUES (?, ?)`, collection, dim); err != nil {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}
	case err != nil:
		return fmt.Errorf("lookup collection %s: %w", collection, err)
	case existing != dim:
		return fmt.Errorf("collection %s has dimension %d, got %d", collection, existing, dim)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, text, metadata, vector) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("record %s has dimension %d, want %d", r.ID, len(r.Vector), dim)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Document, string(meta), serializeVector(r.Vector)); err != nil {
			return fmt.Errorf("upsert point %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the given ids. Unknown ids and collections are ignored.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM points WHERE collection = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
			return fmt.Errorf("delete point %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteExcept removes every point of collection whose id is not in keep.
func (s *Store) DeleteExcept(ctx context.Context, collection string, keep []string) error {
	query := `DELETE FROM points WHERE collection = ?`
	args := make([]any, 0, len(keep)+1)
	args = append(args, collection)
	if len(keep) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete stale points: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, vector []float32, topK int) ([]domain.EvidenceHit, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrNotIndexed, "sqlite.query", fmt.Errorf("collection %s does not exist", collection))
	}
	if err != nil {
		return nil, fmt.Errorf("lookup collection %s: %w", collection, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, metadata, vector FROM points WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	hits := make([]domain.EvidenceHit, 0)
	for rows.Next() {
		var (
			id, text, rawMeta string
			blob              []byte
		)
		if err := rows.Scan(&id, &text, &rawMeta, &blob); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
		clauseID := meta[domain.MetadataClauseID]
		if clauseID == "" {
			clauseID = id
		}
		distance := 1 - cosineSimilarity(vector, deserializeVector(blob))
		hits = append(hits, domain.EvidenceHit{
			ClauseID: clauseID,
			Text:     text,
			Metadata: meta,
			Distance: &distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return *hits[i].Distance < *hits[j].Distance
	})
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
