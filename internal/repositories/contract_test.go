package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/cityinfo/internal/domain"
)

type seededRepository interface {
	domain.CityRepository
	domain.CitySeeder
}

func contractCities() []domain.City {
	return []domain.City{
		{ID: 11, Name: "C", Description: "third"},
		{ID: 12, Name: "A", Description: "first, by the river"},
		{ID: 13, Name: "B", Description: "second", PointsOfInterest: []domain.PointOfInterest{
			{ID: 101, Name: "Zoo", Description: "animals"},
			{ID: 102, Name: "Bridge", Description: "crosses the river"},
			{ID: 103, Name: "Abbey", Description: "old"},
		}},
		{ID: 14, Name: "Paris", Description: "The one with that big tower."},
	}
}

func names(cities []*domain.City) []string {
	out := make([]string, 0, len(cities))
	for _, c := range cities {
		out = append(out, c.Name)
	}
	return out
}

// runRepositoryContract checks the behaviour every CityRepository must share
func runRepositoryContract(t *testing.T, repo seededRepository) {
	ctx := context.Background()
	require.NoError(t, repo.SeedCities(ctx, contractCities()))

	t.Run("first page ordered by name", func(t *testing.T) {
		cities, total, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"A", "B"}, names(cities))
	})

	t.Run("list never hydrates children but keeps the count", func(t *testing.T) {
		cities, _, err := repo.ListCities(ctx, domain.CityQuery{Name: "b", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, cities, 1)
		assert.Empty(t, cities[0].PointsOfInterest)
		assert.Equal(t, 3, cities[0].PointOfInterestCount)
	})

	t.Run("page beyond range keeps total", func(t *testing.T) {
		cities, total, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: 9, PageSize: 2})
		require.NoError(t, err)
		assert.Empty(t, cities)
		assert.Equal(t, 4, total)
	})

	t.Run("non-positive page is empty", func(t *testing.T) {
		cities, total, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: 0, PageSize: 2})
		require.NoError(t, err)
		assert.Empty(t, cities)
		assert.Equal(t, 4, total)
	})

	t.Run("name filter is exact and case-insensitive", func(t *testing.T) {
		cities, total, err := repo.ListCities(ctx, domain.CityQuery{Name: "paris", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"Paris"}, names(cities))

		cities, total, err = repo.ListCities(ctx, domain.CityQuery{Name: "Par", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Empty(t, cities)
	})

	t.Run("search matches name or description", func(t *testing.T) {
		cities, total, err := repo.ListCities(ctx, domain.CityQuery{SearchQuery: "RIV", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"A"}, names(cities))

		cities, _, err = repo.ListCities(ctx, domain.CityQuery{SearchQuery: "pAr", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Paris"}, names(cities))
	})

	t.Run("filters are conjunctive", func(t *testing.T) {
		_, total, err := repo.ListCities(ctx, domain.CityQuery{Name: "A", SearchQuery: "river", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		_, total, err = repo.ListCities(ctx, domain.CityQuery{Name: "C", SearchQuery: "river", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("get with children preserves stored order", func(t *testing.T) {
		city, err := repo.GetCity(ctx, 13, true)
		require.NoError(t, err)
		require.Len(t, city.PointsOfInterest, 3)
		assert.Equal(t, []int{101, 102, 103}, []int{
			city.PointsOfInterest[0].ID,
			city.PointsOfInterest[1].ID,
			city.PointsOfInterest[2].ID,
		})
		assert.Equal(t, 3, city.PointOfInterestCount)
	})

	t.Run("get without children", func(t *testing.T) {
		city, err := repo.GetCity(ctx, 13, false)
		require.NoError(t, err)
		assert.Empty(t, city.PointsOfInterest)
		assert.Equal(t, 3, city.PointOfInterestCount)
		assert.Equal(t, "B", city.Name)
	})

	t.Run("get missing city", func(t *testing.T) {
		for _, include := range []bool{true, false} {
			city, err := repo.GetCity(ctx, 9999, include)
			assert.Nil(t, city)
			assert.True(t, errors.Is(err, domain.ErrCityNotFound))
		}
	})

	t.Run("consecutive pages neither overlap nor skip", func(t *testing.T) {
		for _, size := range []int{1, 3} {
			var walked []string
			for page := 1; ; page++ {
				cities, total, err := repo.ListCities(ctx, domain.CityQuery{PageNumber: page, PageSize: size})
				require.NoError(t, err)
				require.Equal(t, 4, total)
				if len(cities) == 0 {
					break
				}
				require.LessOrEqual(t, len(cities), size)
				walked = append(walked, names(cities)...)
			}
			assert.Equal(t, []string{"A", "B", "C", "Paris"}, walked, "page size %d", size)
		}
	})

	// Seeds extra cities, so it runs last.
	t.Run("filters fold non-ASCII letters", func(t *testing.T) {
		require.NoError(t, repo.SeedCities(ctx, unicodeCities()))

		cities, total, err := repo.ListCities(ctx, domain.CityQuery{Name: "île-de-france", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"Île-de-France"}, names(cities))

		cities, total, err = repo.ListCities(ctx, domain.CityQuery{Name: "ZÜRICH", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"Zürich"}, names(cities))

		cities, total, err = repo.ListCities(ctx, domain.CityQuery{SearchQuery: "élysée", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"Île-de-France"}, names(cities))

		cities, _, err = repo.ListCities(ctx, domain.CityQuery{SearchQuery: "ÜRI", PageNumber: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Zürich"}, names(cities))
	})
}

func unicodeCities() []domain.City {
	return []domain.City{
		{ID: 21, Name: "Île-de-France", Description: "Région ÉLYSÉE"},
		{ID: 22, Name: "Zürich", Description: "on the lake"},
	}
}
