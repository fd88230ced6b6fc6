package models

import "time"

// DefaultWatchlistName is the list used when the caller does not name one.
const DefaultWatchlistName = "Default Watchlist"

// User is a dashboard user keyed by the identity provider's subject.
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Watchlist is a named list owned by a user.
type Watchlist struct {
	ID     int64           `json:"id"`
	UserID int64           `json:"userId"`
	Name   string          `json:"name"`
	Items  []WatchlistItem `json:"items"`
}

// WatchlistItem is one symbol on a watchlist.
type WatchlistItem struct {
	ID          int64     `json:"id"`
	WatchlistID int64     `json:"watchlistId"`
	Symbol      string    `json:"symbol"`
	AddedAt     time.Time `json:"addedAt"`
}
