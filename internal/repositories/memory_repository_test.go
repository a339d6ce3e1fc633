package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/cityinfo/internal/domain"
)

func TestMemoryRepositoryContract(t *testing.T) {
	runRepositoryContract(t, NewMemoryRepository(zaptest.NewLogger(t)))
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository(zaptest.NewLogger(t), contractCities()...)
	ctx := context.Background()

	city, err := repo.GetCity(ctx, 13, true)
	require.NoError(t, err)
	city.Name = "mutated"
	city.PointsOfInterest[0].Name = "mutated"

	again, err := repo.GetCity(ctx, 13, true)
	require.NoError(t, err)
	assert.Equal(t, "B", again.Name)
	assert.Equal(t, "Zoo", again.PointsOfInterest[0].Name)
}

func TestMemoryRepositorySeedReplacesByID(t *testing.T) {
	repo := NewMemoryRepository(zaptest.NewLogger(t), contractCities()...)
	ctx := context.Background()

	require.NoError(t, repo.SeedCities(ctx, []domain.City{{ID: 11, Name: "0 Aardvark"}}))

	cities, total, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, cities, 1)
	assert.Equal(t, "0 Aardvark", cities[0].Name)

	city, err := repo.GetCity(ctx, 11, false)
	require.NoError(t, err)
	assert.Equal(t, "0 Aardvark", city.Name)
}

func TestMemoryRepositoryCanceledContext(t *testing.T) {
	repo := NewMemoryRepository(zaptest.NewLogger(t), contractCities()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: 1, PageSize: 10})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = repo.GetCity(ctx, 11, false)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestMemoryRepositoryConcurrentAccess reads while seeding, run with -race
func TestMemoryRepositoryConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			_ = repo.SeedCities(ctx, []domain.City{{ID: id, Name: fmt.Sprintf("City %d", id)}})
		}(i)
		go func() {
			defer wg.Done()
			_, _, err := repo.ListCities(ctx, domain.CityQuery{SearchQuery: "city", PageNumber: 1, PageSize: 5})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, total, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: 1, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 20, total)
}
