package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"docentgo/pkg/db"
	"docentgo/pkg/model"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CacheStore
	StateStore
	OverrideStore
	SubmissionStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(db.TimeLayout)
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Store: cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	// Transparent decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if decompressed, err := decompress(val); err == nil {
			return decompressed, true
		}
	}
	return val, true
}

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if compressed, err := compress(val); err == nil {
		val = compressed
	}
	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, s.stamp())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ? ORDER BY key", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, s.stamp())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}

// --- Video overrides ---

func (s *SQLiteStore) GetOverride(ctx context.Context, itemID string) (string, bool) {
	var url string
	err := s.db.QueryRowContext(ctx, "SELECT url FROM video_overrides WHERE item_id = ?", itemID).Scan(&url)
	if err != nil {
		return "", false
	}
	return url, true
}

// SetOverride stores url for itemID. An empty url clears the entry.
func (s *SQLiteStore) SetOverride(ctx context.Context, itemID, url string) error {
	if itemID == "" {
		return fmt.Errorf("override needs an item id")
	}
	if url == "" {
		return s.DeleteOverride(ctx, itemID)
	}
	query := `INSERT OR REPLACE INTO video_overrides (item_id, url, updated_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, itemID, url, s.stamp())
	return err
}

func (s *SQLiteStore) DeleteOverride(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM video_overrides WHERE item_id = ?", itemID)
	return err
}

func (s *SQLiteStore) ListOverrides(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT item_id, url FROM video_overrides")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, err
		}
		out[id] = url
	}
	return out, rows.Err()
}

// --- Prize submissions ---

func (s *SQLiteStore) AppendSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.Timestamp.IsZero() {
		sub.Timestamp = s.now()
	}
	var response sql.NullString
	if len(sub.Response) > 0 {
		response = sql.NullString{String: string(sub.Response), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prize_submissions (timestamp, email, score, total_questions, response) VALUES (?, ?, ?, ?, ?)`,
		sub.Timestamp.UTC().Format(time.RFC3339Nano), sub.Email, sub.Score, sub.TotalQuestions, response)
	if err != nil {
		return err
	}
	sub.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, email, score, total_questions, response FROM prize_submissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var (
			sub      model.Submission
			ts       string
			response sql.NullString
		)
		if err := rows.Scan(&sub.ID, &ts, &sub.Email, &sub.Score, &sub.TotalQuestions, &response); err != nil {
			return nil, err
		}
		if sub.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("submission %d: bad timestamp %q: %w", sub.ID, ts, err)
		}
		if response.Valid {
			sub.Response = []byte(response.String)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
