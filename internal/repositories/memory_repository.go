package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/domain"
)

// MemoryRepository keeps cities in process memory.
// It backs the default "memory" driver and serves as the fake in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	cities []domain.City // sorted by name, then ID
	logger *zap.Logger
}

// NewMemoryRepository creates a repository holding the given cities
func NewMemoryRepository(logger *zap.Logger, cities ...domain.City) *MemoryRepository {
	repo := &MemoryRepository{logger: logger}
	repo.put(cities)
	return repo
}

// ListCities filters, counts and slices the stored cities
func (r *MemoryRepository) ListCities(ctx context.Context, query domain.CityQuery) ([]*domain.City, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.City, 0)
	for i := range r.cities {
		if query.Matches(&r.cities[i]) {
			light := r.cities[i].WithoutPointsOfInterest()
			matched = append(matched, &light)
		}
	}

	total := len(matched)
	if !query.InRange() || query.Offset() >= total {
		return []*domain.City{}, total, nil
	}

	end := query.Offset() + query.PageSize
	if end > total {
		end = total
	}

	return matched[query.Offset():end], total, nil
}

// GetCity returns a copy of the stored city
func (r *MemoryRepository) GetCity(ctx context.Context, id int, includePointsOfInterest bool) (*domain.City, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.cities {
		if r.cities[i].ID != id {
			continue
		}
		if !includePointsOfInterest {
			light := r.cities[i].WithoutPointsOfInterest()
			return &light, nil
		}
		city := r.cities[i]
		city.PointsOfInterest = append([]domain.PointOfInterest(nil), r.cities[i].PointsOfInterest...)
		return &city, nil
	}

	return nil, fmt.Errorf("city %d: %w", id, domain.ErrCityNotFound)
}

// SeedCities upserts cities by ID
func (r *MemoryRepository) SeedCities(ctx context.Context, cities []domain.City) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(cities)

	r.logger.Debug("cities seeded into memory", zap.Int("count", len(cities)))
	return nil
}

// CheckConnection always succeeds for the in-memory store
func (r *MemoryRepository) CheckConnection(ctx context.Context) error {
	return ctx.Err()
}

// EnsureCollections is a no-op for the in-memory store
func (r *MemoryRepository) EnsureCollections(ctx context.Context) error {
	return nil
}

// Close releases nothing
func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) put(cities []domain.City) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(cities)
}

func (r *MemoryRepository) putLocked(cities []domain.City) {
	for _, city := range cities {
		city.PointsOfInterest = append([]domain.PointOfInterest(nil), city.PointsOfInterest...)
		city.SyncPointOfInterestCount()

		replaced := false
		for i := range r.cities {
			if r.cities[i].ID == city.ID {
				r.cities[i] = city
				replaced = true
				break
			}
		}
		if !replaced {
			r.cities = append(r.cities, city)
		}
	}

	sort.SliceStable(r.cities, func(i, j int) bool {
		a, b := strings.ToLower(r.cities[i].Name), strings.ToLower(r.cities[j].Name)
		if a != b {
			return a < b
		}
		return r.cities[i].ID < r.cities[j].ID
	})
}

var (
	_ domain.CityRepository = (*MemoryRepository)(nil)
	_ domain.CitySeeder     = (*MemoryRepository)(nil)
	_ domain.HealthChecker  = (*MemoryRepository)(nil)
)
