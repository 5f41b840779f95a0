package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nartankaplan/MDM-version3/internal/domain"
)

// MemoryCommandsRepo 命令账本的内存实现（DB 关闭时的回退）
type MemoryCommandsRepo struct {
	mu       sync.Mutex
	commands map[string]*domain.Command // commandID -> Command
}

func NewMemoryCommandsRepo() *MemoryCommandsRepo {
	return &MemoryCommandsRepo{commands: map[string]*domain.Command{}}
}

func (r *MemoryCommandsRepo) Enqueue(_ context.Context, cmd *domain.Command) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *cmd
	cp.CommandID = uuid.New().String()
	cp.Status = domain.CommandStatusPending
	cp.CreatedAt = time.Now()
	r.commands[cp.CommandID] = &cp
	return cp.CommandID, nil
}

func (r *MemoryCommandsRepo) GetCommand(_ context.Context, commandID string) (*domain.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commands[commandID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCommandsRepo) ListForDevice(_ context.Context, deviceID string) ([]*domain.Command, error) {
	out := r.collect(deviceID, "")
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryCommandsRepo) ListPending(_ context.Context, deviceID string) ([]*domain.Command, error) {
	out := r.collect(deviceID, domain.CommandStatusPending)
	// FIFO：最早入队的先投递
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryCommandsRepo) collect(deviceID, status string) []*domain.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Command{}
	for _, c := range r.commands {
		if c.DeviceID != deviceID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out
}

func (r *MemoryCommandsRepo) Complete(_ context.Context, commandID string, success bool, result, errorMessage string) (*domain.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.commands[commandID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != domain.CommandStatusPending {
		return nil, ErrInvalidState
	}
	if success {
		c.Status = domain.CommandStatusCompleted
	} else {
		c.Status = domain.CommandStatusFailed
	}
	c.Result = sql.NullString{String: result, Valid: result != ""}
	c.ErrorMessage = sql.NullString{String: errorMessage, Valid: errorMessage != ""}
	c.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	cp := *c
	return &cp, nil
}

func (r *MemoryCommandsRepo) CompleteDelivered(_ context.Context, commandID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.commands[commandID]
	if !ok {
		return ErrNotFound
	}
	if c.Status != domain.CommandStatusPending {
		return ErrInvalidState
	}
	now := time.Now()
	c.Status = domain.CommandStatusCompleted
	c.Result = sql.NullString{String: `{"delivered":true}`, Valid: true}
	c.ExecutedAt = sql.NullTime{Time: now, Valid: true}
	c.CompletedAt = sql.NullTime{Time: now, Valid: true}
	return nil
}

func (r *MemoryCommandsRepo) deleteForDevice(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.commands {
		if c.DeviceID == deviceID {
			delete(r.commands, id)
		}
	}
}
