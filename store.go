package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// cacheSlot is the single row key; the store mirrors exactly one credential
// pair, matching the two durable string entries the original client keeps.
const cacheSlot = "current"

type credentialRecord struct {
	bun.BaseModel `bun:"table:session_cache,alias:sc"`
	Slot          string    `bun:"slot,pk" json:"slot"`
	UserJSON      string    `bun:"user_json,notnull" json:"user_json"`
	Token         string    `bun:"token,notnull" json:"token"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// SQLStore persists the credential pair in a local SQLite database through
// bun. The serialized user and the bearer token are written and cleared
// together.
type SQLStore struct {
	db     *bun.DB
	logger Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an existing bun DB and makes sure the cache table exists.
func NewSQLStore(ctx context.Context, db *bun.DB) (*SQLStore, error) {
	s := &SQLStore{db: db, logger: defLogger{}}

	if _, err := db.NewCreateTable().
		Model((*credentialRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to initialize session cache table")
	}

	return s, nil
}

// OpenSQLStore opens (or creates) the SQLite file at path and returns a ready
// store. Use ":memory:" for an ephemeral database.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to open session cache database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	return NewSQLStore(ctx, db)
}

func (s *SQLStore) WithLogger(logger Logger) *SQLStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Read returns the cached pair, or nil when the slot is empty. A record that
// fails the structural parse is treated as absent: the slot is cleared and no
// error is surfaced.
func (s *SQLStore) Read(ctx context.Context) (*CachedCredential, error) {
	record := &credentialRecord{}

	err := s.db.NewSelect().
		Model(record).
		Where("slot = ?", cacheSlot).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to read session cache")
	}

	pair, ok := decodeRecord(record)
	if !ok {
		s.logger.Warn("discarding corrupt session cache record")
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return pair, nil
}

// Write stores the pair, replacing whatever the slot held.
func (s *SQLStore) Write(ctx context.Context, pair *CachedCredential) error {
	if !pair.Valid() {
		return goerrors.New("refusing to cache incomplete credential pair", goerrors.CategoryBadInput)
	}

	userJSON, err := json.Marshal(pair.User)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to serialize user record")
	}

	updatedAt := pair.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	record := &credentialRecord{
		Slot:      cacheSlot,
		UserJSON:  string(userJSON),
		Token:     pair.Token,
		UpdatedAt: updatedAt,
	}

	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (slot) DO UPDATE").
		Set("user_json = EXCLUDED.user_json").
		Set("token = EXCLUDED.token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to write session cache")
	}

	return nil
}

// Clear empties the slot. Clearing an already empty slot is a no-op.
func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("slot = ?", cacheSlot).
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to clear session cache")
	}
	return nil
}

func decodeRecord(record *credentialRecord) (*CachedCredential, bool) {
	if record.UserJSON == "" || record.Token == "" {
		return nil, false
	}

	user := &User{}
	if err := json.Unmarshal([]byte(record.UserJSON), user); err != nil {
		return nil, false
	}

	pair := &CachedCredential{
		User:      user,
		Token:     record.Token,
		UpdatedAt: record.UpdatedAt,
	}

	if !pair.Valid() {
		return nil, false
	}

	return pair, true
}

// MemoryStore is an in-process Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu   sync.RWMutex
	pair *CachedCredential
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Read(ctx context.Context) (*CachedCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.pair.Valid() {
		return nil, nil
	}

	clone := *m.pair
	user := *m.pair.User
	clone.User = &user
	return &clone, nil
}

func (m *MemoryStore) Write(ctx context.Context, pair *CachedCredential) error {
	if !pair.Valid() {
		return goerrors.New("refusing to cache incomplete credential pair", goerrors.CategoryBadInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *pair
	user := *pair.User
	clone.User = &user
	m.pair = &clone
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = nil
	return nil
}
