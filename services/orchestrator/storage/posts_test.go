// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
)

func newTestStore(t *testing.T) *PostStore {
	t.Helper()
	store, err := OpenPostStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)

	post := datatypes.BlogPost{
		Title:           "Test Post",
		Content:         "# Test\n\nBody content here.",
		MetaDescription: "A test post.",
		Category:        "AI Tools",
		ReadTime:        2,
	}

	id, err := store.Save(post, 250)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, post.Title, got.Post.Title)
	assert.Equal(t, post.Content, got.Post.Content)
	assert.Equal(t, 250, got.WordCount)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestPostStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for _, title := range []string{"first", "second", "third"} {
		_, err := store.Save(datatypes.BlogPost{Title: title}, 10)
		require.NoError(t, err)
	}

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].CreatedAt.After(records[i-1].CreatedAt),
			"records must be ordered newest first")
	}
}

func TestPostStore_ListEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}
