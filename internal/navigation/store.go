// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package navigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const navKeyPrefix = "nav:"

// ErrNotFound is returned when a session has no stored browse context.
var ErrNotFound = errors.New("navigation context not found")

// Store persists one browse context per session in BadgerDB. Entries
// carry a TTL so stale contexts age out with the session.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// NewStore wraps an open BadgerDB handle. ttl bounds how long a context
// outlives its last write.
func NewStore(db *badger.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// Save replaces the session's browse context.
func (s *Store) Save(_ context.Context, sessionID string, c Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal navigation context: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(navKeyPrefix+sessionID), data).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
}

// Load returns the session's browse context, or ErrNotFound.
func (s *Store) Load(_ context.Context, sessionID string) (Context, error) {
	var c Context
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(navKeyPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get navigation context: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	if err != nil {
		return Context{}, err
	}
	return c, nil
}

// Delete drops the session's browse context. Missing entries are not an
// error.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(navKeyPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// RemoveRecord drops a record from the session's stored context, for use
// when the record is deleted, and returns the id the user should land on.
// Sessions without a context yield a nil return-to.
func (s *Store) RemoveRecord(ctx context.Context, sessionID string, id uuid.UUID) (*uuid.UUID, error) {
	c, err := s.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	returnTo := c.Remove(id)
	if err := s.Save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	return returnTo, nil
}
