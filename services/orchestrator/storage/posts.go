// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage persists generated blog drafts.
//
// # Description
//
// Drafts are stored in an embedded Badger database keyed by post id.
// Persistence happens after the terminal frame has been written, so a
// storage failure never affects the client-visible stream; it is logged
// and the draft is simply lost.
//
// # Thread Safety
//
// PostStore is safe for concurrent use; Badger handles its own locking.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
)

// postKeyPrefix namespaces draft records inside the shared database.
const postKeyPrefix = "post:"

// ErrNotFound is returned when no draft exists for the requested id.
var ErrNotFound = errors.New("post not found")

// StoredPost is one persisted draft with its storage metadata.
type StoredPost struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	WordCount int                `json:"word_count"`
	Post      datatypes.BlogPost `json:"post"`
}

// PostStore persists drafts in Badger.
type PostStore struct {
	db *badger.DB
}

// OpenPostStore opens (or creates) the draft database at path.
func OpenPostStore(path string) (*PostStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening post store at %s: %w", path, err)
	}
	return &PostStore{db: db}, nil
}

// Save persists one draft and returns its assigned id.
func (s *PostStore) Save(post datatypes.BlogPost, wordCount int) (string, error) {
	record := StoredPost{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		WordCount: wordCount,
		Post:      post,
	}

	value, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshaling draft: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(postKeyPrefix+record.ID), value)
	})
	if err != nil {
		return "", fmt.Errorf("writing draft: %w", err)
	}

	slog.Info("draft persisted", "post_id", record.ID, "words", record.WordCount)
	return record.ID, nil
}

// Get returns the draft with the given id, or ErrNotFound.
func (s *PostStore) Get(id string) (*StoredPost, error) {
	var record StoredPost
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(postKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns every stored draft, newest first.
func (s *PostStore) List() ([]StoredPost, error) {
	var records []StoredPost
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(postKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record StoredPost
				if err := json.Unmarshal(val, &record); err != nil {
					// A corrupt record should not hide the rest.
					slog.Warn("skipping unreadable draft record", "error", err)
					return nil
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Badger iterates in key order (uuid), not time order.
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Close flushes and closes the database.
func (s *PostStore) Close() error {
	return s.db.Close()
}
