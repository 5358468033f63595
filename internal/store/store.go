// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store persists the pressure history under a key.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
)

// DefaultKey is the key the forecaster saves its history under.
const DefaultKey = "pressure_history"

// Store loads and saves a history. Load returns ok=false for an unknown key.
type Store interface {
	Load(ctx context.Context, key string) (points []forecast.DataPoint, ok bool, err error)
	Save(ctx context.Context, key string, points []forecast.DataPoint) error
	Delete(ctx context.Context, key string) error
}

func encode(points []forecast.DataPoint) ([]byte, error) {
	if points == nil {
		points = []forecast.DataPoint{}
	}
	b, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return b, nil
}

func decode(b []byte) ([]forecast.DataPoint, error) {
	var points []forecast.DataPoint
	if err := json.Unmarshal(b, &points); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return points, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	data map[string][]forecast.DataPoint
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]forecast.DataPoint)}
}

func (m *Memory) Load(_ context.Context, key string) ([]forecast.DataPoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[key]
	return slices.Clone(p), ok, nil
}

func (m *Memory) Save(_ context.Context, key string, points []forecast.DataPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(points)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
