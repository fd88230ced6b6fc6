package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/internal/security"
)

// SQLiteStore implements WatchlistStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	if dbPath == ":memory:" {
		dsn = "file::memory:?cache=shared&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if dbPath == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watchlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(user_id, name),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS watchlist_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		watchlist_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		added_at DATETIME NOT NULL,
		UNIQUE(watchlist_id, symbol),
		FOREIGN KEY (watchlist_id) REFERENCES watchlists(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_watchlist_items_list ON watchlist_items(watchlist_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Users
// ============================================================================

// EnsureUser returns the user for externalID, creating it on first sight.
func (s *SQLiteStore) EnsureUser(ctx context.Context, externalID string) (*models.User, error) {
	if err := security.ValidateUserID(externalID); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (external_id, created_at) VALUES (?, ?)
	`, externalID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, created_at FROM users WHERE external_id = ?
	`, externalID).Scan(&u.ID, &u.ExternalID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// lookupList returns the list id, or 0 when the user or list is unknown.
func (s *SQLiteStore) lookupList(ctx context.Context, externalID, listName string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT w.id FROM watchlists w
		JOIN users u ON u.id = w.user_id
		WHERE u.external_id = ? AND w.name = ?
	`, externalID, listName).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query watchlist: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ensureList(ctx context.Context, userID int64, listName string) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlists (user_id, name, created_at) VALUES (?, ?, ?)
	`, userID, listName, s.now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to create watchlist: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT id FROM watchlists WHERE user_id = ? AND name = ?
	`, userID, listName).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to load watchlist: %w", err)
	}
	return id, nil
}

// ============================================================================
// Watchlist Methods
// ============================================================================

// resolveList maps a blank name to the default list and validates the rest.
func resolveList(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.DefaultWatchlistName, nil
	}
	if err := security.ValidateWatchlistName(name); err != nil {
		return "", err
	}
	return name, nil
}

// Items retrieves the entries of a watchlist.
func (s *SQLiteStore) Items(ctx context.Context, externalID, listName string) ([]models.WatchlistItem, error) {
	name, err := resolveList(listName)
	if err != nil {
		return nil, err
	}
	listID, err := s.lookupList(ctx, externalID, name)
	if err != nil {
		return nil, err
	}
	if listID == 0 {
		return []models.WatchlistItem{}, nil
	}
	return s.items(ctx, listID)
}

func (s *SQLiteStore) items(ctx context.Context, listID int64) ([]models.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, watchlist_id, symbol, added_at FROM watchlist_items
		WHERE watchlist_id = ? ORDER BY id ASC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist items: %w", err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var it models.WatchlistItem
		if err := rows.Scan(&it.ID, &it.WatchlistID, &it.Symbol, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

// AddItem adds a symbol to a watchlist.
func (s *SQLiteStore) AddItem(ctx context.Context, externalID, listName, symbol string) (*models.WatchlistItem, error) {
	sym, err := security.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	name, err := resolveList(listName)
	if err != nil {
		return nil, err
	}
	user, err := s.EnsureUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	listID, err := s.ensureList(ctx, user.ID, name)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlist_items (watchlist_id, symbol, added_at) VALUES (?, ?, ?)
	`, listID, sym, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to add to watchlist: %w", err)
	}

	var it models.WatchlistItem
	err = s.db.QueryRowContext(ctx, `
		SELECT id, watchlist_id, symbol, added_at FROM watchlist_items
		WHERE watchlist_id = ? AND symbol = ?
	`, listID, sym).Scan(&it.ID, &it.WatchlistID, &it.Symbol, &it.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist item: %w", err)
	}
	return &it, nil
}

// RemoveItem removes a symbol from a watchlist.
func (s *SQLiteStore) RemoveItem(ctx context.Context, externalID, listName, symbol string) error {
	sym, err := security.ValidateSymbol(symbol)
	if err != nil {
		return err
	}
	name, err := resolveList(listName)
	if err != nil {
		return err
	}
	listID, err := s.lookupList(ctx, externalID, name)
	if err != nil {
		return err
	}
	if listID == 0 {
		return apperrors.Wrapf(apperrors.ErrDataNotFound, "watchlist %q", name)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM watchlist_items WHERE watchlist_id = ? AND symbol = ?
	`, listID, sym)
	if err != nil {
		return fmt.Errorf("failed to remove from watchlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Wrapf(apperrors.ErrDataNotFound, "%s not on watchlist", sym)
	}
	return nil
}

// Lists retrieves all of a user's watchlists.
func (s *SQLiteStore) Lists(ctx context.Context, externalID string) ([]models.Watchlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.user_id, w.name FROM watchlists w
		JOIN users u ON u.id = w.user_id
		WHERE u.external_id = ? ORDER BY w.id ASC
	`, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlists: %w", err)
	}

	lists := []models.Watchlist{}
	for rows.Next() {
		var w models.Watchlist
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan watchlist: %w", err)
		}
		lists = append(lists, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range lists {
		items, err := s.items(ctx, lists[i].ID)
		if err != nil {
			return nil, err
		}
		lists[i].Items = items
	}
	return lists, nil
}
