package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// MemoryEventsRepo 事件日志的内存实现（DB 关闭时的回退）
type MemoryEventsRepo struct {
	mu     sync.Mutex
	events []*domain.DeviceEvent
}

func NewMemoryEventsRepo() *MemoryEventsRepo {
	return &MemoryEventsRepo{}
}

func (r *MemoryEventsRepo) Append(_ context.Context, e *domain.DeviceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	cp.EventID = uuid.New().String()
	cp.CreatedAt = time.Now()
	if cp.Severity == "" {
		cp.Severity = "INFO"
	}
	r.events = append(r.events, &cp)
	return nil
}

func (r *MemoryEventsRepo) ListForDevice(_ context.Context, deviceID string, limit int) ([]*domain.DeviceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []*domain.DeviceEvent{}
	for _, e := range r.events {
		if e.DeviceID.Valid && e.DeviceID.String == deviceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryEventsRepo) deleteForDevice(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	for _, e := range r.events {
		if !(e.DeviceID.Valid && e.DeviceID.String == deviceID) {
			kept = append(kept, e)
		}
	}
	r.events = kept
}

// MemorySettingsRepo system_settings 的内存实现
type MemorySettingsRepo struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySettingsRepo() *MemorySettingsRepo {
	return &MemorySettingsRepo{values: map[string]string{}}
}

func (r *MemorySettingsRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *MemorySettingsRepo) Upsert(_ context.Context, key, value, _ string, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *MemorySettingsRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}
