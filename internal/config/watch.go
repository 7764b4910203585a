package config

import (
	"context"
	"os"
	"time"
)

// WatchSpotTemplates reloads the spot templates file on change and calls
// onUpdate with the latest config. It performs an initial load before
// entering the watch loop.
func WatchSpotTemplates(ctx context.Context, path string, interval time.Duration, onUpdate func(*SpotTemplatesConfig)) error {
	if path == "" {
		path = "configs/spots.yaml"
	}
	return watchFile(ctx, path, interval, LoadSpotTemplates, onUpdate)
}

func watchFile[T any](ctx context.Context, path string, interval time.Duration, load func(string) (*T, error), onUpdate func(*T)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := load(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := load(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
