package config

import (
	"context"
	"os"
	"time"
)

// WatchRooms polls rooms.yaml and calls onUpdate whenever a newer version parses.
// The first load happens synchronously and its error is returned; later reload
// failures go to onError and keep the previous config in effect.
func WatchRooms(ctx context.Context, path string, interval time.Duration, onUpdate func(*RoomsConfig), onError func(error)) error {
	if path == "" {
		path = "configs/rooms.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if onUpdate == nil {
		onUpdate = func(*RoomsConfig) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	cfg, err := LoadRoomsConfig(path)
	if err != nil {
		return err
	}
	onUpdate(cfg)

	go pollRooms(ctx, path, interval, info.ModTime(), onUpdate, onError)
	return nil
}

func pollRooms(ctx context.Context, path string, interval time.Duration, seen time.Time, onUpdate func(*RoomsConfig), onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			continue // file may be mid-rewrite
		}
		mod := info.ModTime()
		if !mod.After(seen) || mod.Equal(failedAt) {
			continue
		}

		cfg, err := LoadRoomsConfig(path)
		if err != nil {
			// Report a broken revision once, not on every tick.
			failedAt = mod
			onError(err)
			continue
		}
		seen = mod
		onUpdate(cfg)
	}
}
