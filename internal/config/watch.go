package config

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"ezbiz/internal/model"
)

// HoursSource holds the latest hours configuration and serves it to readers
// while WatchHours swaps in reloaded versions.
type HoursSource struct {
	current atomic.Pointer[HoursConfig]
}

func NewHoursSource(cfg *HoursConfig) *HoursSource {
	s := &HoursSource{}
	if cfg != nil {
		s.current.Store(cfg)
	}
	return s
}

func (s *HoursSource) Set(cfg *HoursConfig) {
	s.current.Store(cfg)
}

func (s *HoursSource) Get() *HoursConfig {
	return s.current.Load()
}

func (s *HoursSource) HoursFor(date time.Time) (model.BusinessHours, error) {
	cfg := s.current.Load()
	if cfg == nil {
		return model.BusinessHours{}, errors.New("hours config not loaded")
	}
	return cfg.HoursFor(date)
}

// WatchHours reloads hours.yaml on change and calls onUpdate with the latest config.
// It performs an initial load before entering the watch loop.
func WatchHours(ctx context.Context, path string, interval time.Duration, onUpdate func(*HoursConfig), onError func(error)) error {
	if path == "" {
		path = "configs/hours.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadHours(path)
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
				lastMod = info.ModTime()
				cfg, err := LoadHours(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
