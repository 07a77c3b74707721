package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/storage/storagetest"
)

func TestSweepOnceDeletesExpiredRunLogs(t *testing.T) {
	store := storagetest.NewFakeStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreateRunLog(ctx, &v1.RunLog{
		ID: "old", Platform: "all", Status: v1.RunStatusSuccess,
		StartedAt: now.Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, store.CreateRunLog(ctx, &v1.RunLog{
		ID: "recent", Platform: "all", Status: v1.RunStatusSuccess,
		StartedAt: now.Add(-time.Hour),
	}))

	sweeper := NewSweeper(store, store, time.Hour, 30*24*time.Hour, -1)
	sweeper.SweepOnce(ctx)

	logs, err := store.ListRunLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "recent", logs[0].ID)
}

func TestSweepOnceExpiresStaleListings(t *testing.T) {
	store := storagetest.NewFakeStore()
	ctx := context.Background()
	now := time.Now().UTC()

	device, _, err := store.UpsertDevice(ctx, &v1.Device{
		ID: "d1", Name: "iPhone 13", Brand: "Apple",
		Category: v1.CategoryPhone, ModelSlug: "iphone-13",
	})
	require.NoError(t, err)

	_, err = store.UpsertPrice(ctx, &v1.Price{
		DeviceID: device.ID, Platform: "olx", Price: 100,
		URL: "https://olx.example/stale", LastSeenAt: now.Add(-20 * 24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = store.UpsertPrice(ctx, &v1.Price{
		DeviceID: device.ID, Platform: "olx", Price: 200,
		URL: "https://olx.example/live", LastSeenAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	sweeper := NewSweeper(store, store, time.Hour, 30*24*time.Hour, 14*24*time.Hour)
	sweeper.SweepOnce(ctx)

	require.Equal(t, 1, store.PriceCount())
	prices, err := store.ListPricesByDevice(ctx, device.ID)
	require.NoError(t, err)
	require.Equal(t, "https://olx.example/live", prices[0].URL)
}

func TestSweeperStartStopsOnContextCancel(t *testing.T) {
	store := storagetest.NewFakeStore()
	sweeper := NewSweeper(store, store, 10*time.Millisecond, time.Hour, -1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
