// Package store implements ports.Repository over memory and PostgreSQL.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"careon/internal/enrollment/models"
	id "careon/pkg/domain"
	"careon/pkg/platform/sentinel"
)

// InMemory keeps records in a map. Business-number uniqueness is checked
// under the write lock so concurrent saves observe each other.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.ApplicationID]models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.ApplicationID]models.Record)}
}

func (s *InMemory) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return models.Rehydrate(rec), nil
}

func (s *InMemory) FindByBusinessNumber(_ context.Context, number string) (*models.Application, error) {
	if number == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.Business.Number == number {
			return models.Rehydrate(rec), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByUserID(_ context.Context, userID id.UserID) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, models.Rehydrate(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) FindAll(_ context.Context, filters models.Filters) (*models.ListResult, error) {
	filters = filters.Normalize()
	s.mu.RLock()
	matched := make([]*models.Application, 0, len(s.records))
	for _, rec := range s.records {
		app := models.Rehydrate(rec)
		if filters.Matches(app) {
			matched = append(matched, app)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)
	total := len(matched)
	start := min(filters.Offset(), total)
	end := min(start+filters.PageSize, total)
	return models.NewListResult(matched[start:end], total, filters), nil
}

func (s *InMemory) Save(_ context.Context, app *models.Application) (*models.Application, error) {
	rec := app.Snapshot()
	if rec.ID.IsNil() {
		rec.ID = id.NewApplicationID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Business.Number != "" {
		for otherID, other := range s.records {
			if otherID != rec.ID && other.Business.Number == rec.Business.Number {
				return nil, sentinel.ErrConflict
			}
		}
	}
	s.records[rec.ID] = rec
	return models.Rehydrate(rec), nil
}

func (s *InMemory) Delete(_ context.Context, appID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[appID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, appID)
	return nil
}

func (s *InMemory) ExistsByBusinessNumber(ctx context.Context, number string) (bool, error) {
	_, err := s.FindByBusinessNumber(ctx, number)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func sortNewestFirst(apps []*models.Application) {
	slices.SortFunc(apps, func(a, b *models.Application) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return compareIDs(a.ID(), b.ID())
	})
}

func compareIDs(a, b id.ApplicationID) int {
	return slices.Compare(a[:], b[:])
}
