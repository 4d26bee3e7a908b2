// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestStore_RecordAndSummary tests that recorded requests aggregate correctly.
func TestStore_RecordAndSummary(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Record(RequestStat{
		Kind:     KindChat,
		Model:    "llama3",
		Status:   StatusOK,
		Duration: 120 * time.Millisecond,
		Bytes:    64,
	}))
	require.NoError(t, store.Record(RequestStat{
		Kind:     KindStream,
		Model:    "llama3",
		Status:   StatusOK,
		Duration: 800 * time.Millisecond,
		Chunks:   12,
		Bytes:    512,
	}))
	require.NoError(t, store.Record(RequestStat{
		Kind:     KindStream,
		Model:    "mistral",
		Status:   StatusError,
		Duration: 40 * time.Millisecond,
		Chunks:   2,
		Bytes:    17,
	}))
	require.NoError(t, store.Record(RequestStat{
		Kind:   KindModels,
		Status: StatusOK,
	}))

	sum, err := store.Summary()
	require.NoError(t, err)

	require.Equal(t, 4, sum.TotalRequests)
	require.Equal(t, 1, sum.Errors)
	require.Equal(t, int64(14), sum.TotalChunks)
	require.Equal(t, int64(593), sum.TotalBytes)
	require.Equal(t, 1, sum.ByKind[KindChat])
	require.Equal(t, 2, sum.ByKind[KindStream])
	require.Equal(t, 1, sum.ByKind[KindModels])
	require.InDelta(t, 240.0, sum.AvgDurationMS, 0.001)
}

// TestStore_EmptySummary tests aggregation over an empty log.
func TestStore_EmptySummary(t *testing.T) {
	store := openTestStore(t)

	sum, err := store.Summary()
	require.NoError(t, err)

	require.Equal(t, 0, sum.TotalRequests)
	require.Equal(t, 0, sum.Errors)
	require.Equal(t, int64(0), sum.TotalBytes)
	require.Empty(t, sum.ByKind)
	require.Zero(t, sum.AvgDurationMS)
}

// TestStore_RecentOrderAndLimit tests that Recent returns newest first and
// honors the limit.
func TestStore_RecentOrderAndLimit(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(RequestStat{
			Time:   base.Add(time.Duration(i) * time.Second),
			Kind:   KindChat,
			Model:  "llama3",
			Status: StatusOK,
		}))
	}

	recent, err := store.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Newest first.
	require.Equal(t, base.Add(4*time.Second).UnixMilli(), recent[0].Time.UnixMilli())
	require.Equal(t, base.Add(3*time.Second).UnixMilli(), recent[1].Time.UnixMilli())
	require.Equal(t, base.Add(2*time.Second).UnixMilli(), recent[2].Time.UnixMilli())
}

// TestStore_RecordFillsDefaults tests that zero Time and Status get filled.
func TestStore_RecordFillsDefaults(t *testing.T) {
	store := openTestStore(t)

	before := time.Now().Add(-time.Second)
	require.NoError(t, store.Record(RequestStat{Kind: KindChat}))

	recent, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	require.Equal(t, StatusOK, recent[0].Status)
	require.True(t, recent[0].Time.After(before), "zero Time should be filled with now")
}

// TestStore_RoundTripFields tests that a full row survives storage intact.
func TestStore_RoundTripFields(t *testing.T) {
	store := openTestStore(t)

	in := RequestStat{
		Time:     time.Now(),
		Kind:     KindStream,
		Model:    "qwen2.5-coder:14b",
		Status:   StatusError,
		Duration: 1250 * time.Millisecond,
		Chunks:   42,
		Bytes:    4096,
	}
	require.NoError(t, store.Record(in))

	recent, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	got := recent[0]
	require.Equal(t, in.Time.UnixMilli(), got.Time.UnixMilli())
	require.Equal(t, in.Kind, got.Kind)
	require.Equal(t, in.Model, got.Model)
	require.Equal(t, in.Status, got.Status)
	require.Equal(t, in.Duration, got.Duration)
	require.Equal(t, in.Chunks, got.Chunks)
	require.Equal(t, in.Bytes, got.Bytes)
}

// TestStore_Reset tests that Reset empties the log.
func TestStore_Reset(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Record(RequestStat{Kind: KindChat}))
	require.NoError(t, store.Record(RequestStat{Kind: KindModels}))

	require.NoError(t, store.Reset())

	sum, err := store.Summary()
	require.NoError(t, err)
	require.Equal(t, 0, sum.TotalRequests)
}

// TestStore_ReopenKeepsData tests that the log persists across open/close.
func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(RequestStat{Kind: KindChat, Model: "llama3"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	sum, err := reopened.Summary()
	require.NoError(t, err)
	require.Equal(t, 1, sum.TotalRequests)
}
