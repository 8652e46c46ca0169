package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

func newStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDB(DiskStoreCfg{DiskStoreDir: t.TempDir()}, "test-journal")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestDiskStore_Insert(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 19, 14, 2, 0, 0, time.UTC)

	late := &domain.Entry{
		Identity:    "bob",
		Hour:        15,
		Mode:        domain.ModeTransfer,
		Role:        "middle",
		Status:      "expired",
		Error:       "transaction expired (predecessor alice)",
		Fingerprint: "57855/3450988467/2026-10-19T15:59:50",
		StartedAt:   start.Add(time.Hour),
		FinishedAt:  start.Add(time.Hour + time.Second),
	}
	early := &domain.Entry{
		Identity:   "bob",
		Hour:       14,
		Mode:       domain.ModeTransfer,
		Role:       "middle",
		Status:     "ok",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
	require.NoError(t, store.Insert(ctx, late, early))
	assert.NotEmpty(t, late.ID)
	assert.NotEqual(t, late.ID, early.ID)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	if assert.Len(t, entries, 2) {
		assert.Equal(t, early.ID, entries[0].ID)
		assert.Equal(t, "ok", entries[0].Status)
		assert.Equal(t, late.Error, entries[1].Error)
		assert.True(t, late.StartedAt.Equal(entries[1].StartedAt))
	}

	require.NoError(t, store.Flush(ctx))
	entries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewDB(DiskStoreCfg{DiskStoreDir: dir}, journalBucket)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, &domain.Entry{Identity: "alice", Status: "ok"}))
	require.NoError(t, store.Close())

	store, err = NewDB(DiskStoreCfg{DiskStoreDir: dir}, journalBucket)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDiskStore_ReadOnlyWhileRunning(t *testing.T) {
	cfg := DiskStoreCfg{DiskStoreDir: t.TempDir()}
	running, err := NewDB(cfg, journalBucket)
	require.NoError(t, err)
	require.NoError(t, running.Insert(context.Background(), &domain.Entry{Identity: "bob", Status: "ok"}))

	_, err = NewReadOnlyDB(cfg, journalBucket)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bolt.ErrTimeout))
	assert.Contains(t, err.Error(), "GET /history")

	require.NoError(t, running.Close())
	stopped, err := NewReadOnlyDB(cfg, journalBucket)
	require.NoError(t, err)
	defer stopped.Close()
	entries, err := stopped.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Identity)
}

func TestDiskStore_ReadOnlyMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := NewReadOnlyDB(DiskStoreCfg{DiskStoreDir: dir}, journalBucket)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoFileExists(t, filepath.Join(dir, "store"))
}

func TestDiskStore_ReadOnlyWithoutBucket(t *testing.T) {
	cfg := DiskStoreCfg{DiskStoreDir: t.TempDir()}
	other, err := NewDB(cfg, "other")
	require.NoError(t, err)
	require.NoError(t, other.Close())

	store, err := NewReadOnlyDB(cfg, journalBucket)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
