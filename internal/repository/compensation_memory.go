package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/techmarket-sync/internal/domain/entity"
	domainrepo "github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/repository/common"
)

// MemoryCompensationJournal - журнал компенсаций в памяти процесса.
// Используется, когда DATABASE_URL не задан; записи теряются при рестарте.
type MemoryCompensationJournal struct {
	mu    sync.Mutex
	items map[uuid.UUID]*entity.Compensation
}

func NewMemoryCompensationJournal() *MemoryCompensationJournal {
	return &MemoryCompensationJournal{
		items: make(map[uuid.UUID]*entity.Compensation),
	}
}

var _ domainrepo.CompensationJournal = (*MemoryCompensationJournal)(nil)

func (j *MemoryCompensationJournal) Record(_ context.Context, c *entity.Compensation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := *c
	j.items[c.ID] = &cp
	return nil
}

func (j *MemoryCompensationJournal) ListDue(_ context.Context, now time.Time, limit int) ([]entity.Compensation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	due := make([]entity.Compensation, 0)
	for _, c := range j.items {
		if c.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, *c)
	}
	sort.Slice(due, func(a, b int) bool {
		return due[a].NextAttemptAt.Before(due[b].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	for _, c := range due {
		j.items[c.ID].NextAttemptAt = now.Add(claimLease)
	}
	return due, nil
}

func (j *MemoryCompensationJournal) MarkDone(_ context.Context, id uuid.UUID) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.items[id]; !ok {
		return common.ErrNotFound
	}
	// Закрытые записи не хранятся: процесс живёт долго.
	delete(j.items, id)
	return nil
}

func (j *MemoryCompensationJournal) MarkFailed(_ context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.items[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Attempts++
	c.LastError = reason
	c.NextAttemptAt = nextAttemptAt
	return nil
}

// Pending возвращает число незакрытых компенсаций.
func (j *MemoryCompensationJournal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.items)
}
