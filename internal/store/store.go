// Package store persists per-user watchlists.
package store

import (
	"context"

	"market-dashboard/internal/models"
)

// WatchlistStore is the persistence boundary for watchlists. Users are
// addressed by the external identity provider's subject id.
type WatchlistStore interface {
	// EnsureUser returns the user for externalID, creating it on first sight.
	EnsureUser(ctx context.Context, externalID string) (*models.User, error)

	// Items returns the entries of the named list in insertion order. An
	// unknown user or list yields an empty slice.
	Items(ctx context.Context, externalID, listName string) ([]models.WatchlistItem, error)

	// AddItem puts symbol on the named list, creating the user and the list
	// as needed. Adding a symbol twice returns the existing entry.
	AddItem(ctx context.Context, externalID, listName, symbol string) (*models.WatchlistItem, error)

	// RemoveItem takes symbol off the named list. It reports
	// errors.ErrDataNotFound when the symbol was not on it.
	RemoveItem(ctx context.Context, externalID, listName, symbol string) error

	// Lists returns every list the user owns, with items.
	Lists(ctx context.Context, externalID string) ([]models.Watchlist, error)

	Close() error
}
