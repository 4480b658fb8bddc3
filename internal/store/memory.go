package store

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a user has no default location saved.
	ErrNotFound = errors.New("no default location for user")

	ErrEmptyUserID       = errors.New("user id must be provided")
	ErrEmptyLocationName = errors.New("location name must be provided")
)

// UserStore is a concurrency-safe in-memory store of each user's default location.
type UserStore struct {
	mu sync.RWMutex

	// key: user id, value: location name
	locations map[string]string
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		locations: make(map[string]string),
	}
}

// SaveDefaultLocation sets (or replaces) the default location for userID.
func (s *UserStore) SaveDefaultLocation(ctx context.Context, userID, locationName string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(locationName) == "" {
		return ErrEmptyLocationName
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.locations[userID] = locationName
	return nil
}

// DefaultLocation returns the saved default location for userID.
func (s *UserStore) DefaultLocation(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[userID]
	if !ok {
		return "", ErrNotFound
	}
	return loc, nil
}
