package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationMetadata(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		pageSize   int
		page       int
		totalPages int
	}{
		{"no matches", 0, 10, 1, 0},
		{"single partial page", 3, 10, 1, 1},
		{"exact multiple", 20, 10, 2, 2},
		{"remainder rounds up", 3, 2, 1, 2},
		{"page beyond range", 3, 2, 7, 2},
		{"one item", 1, 20, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := NewPaginationMetadata(tt.total, tt.pageSize, tt.page)
			assert.Equal(t, tt.total, meta.TotalItemCount)
			assert.Equal(t, tt.pageSize, meta.PageSize)
			assert.Equal(t, tt.page, meta.CurrentPage)
			assert.Equal(t, tt.totalPages, meta.TotalPages)
			assert.Equal(t, meta.TotalItemCount == 0, meta.TotalPages == 0)
		})
	}
}

func TestCityQueryMatches(t *testing.T) {
	paris := &City{ID: 3, Name: "Paris", Description: "The one with that big tower."}
	antwerp := &City{ID: 2, Name: "Antwerp", Description: "The one with the cathedral on the river."}

	assert.True(t, CityQuery{Name: "paris"}.Matches(paris))
	assert.False(t, CityQuery{Name: "Par"}.Matches(paris))
	assert.True(t, CityQuery{SearchQuery: "RIV"}.Matches(antwerp))
	assert.True(t, CityQuery{SearchQuery: "twe"}.Matches(antwerp))
	assert.False(t, CityQuery{SearchQuery: "RIV"}.Matches(paris))
	assert.False(t, CityQuery{Name: "paris", SearchQuery: "river"}.Matches(paris))
	assert.True(t, CityQuery{}.Matches(paris))
}

func TestCityQueryOffset(t *testing.T) {
	assert.Equal(t, 0, CityQuery{PageNumber: 1, PageSize: 10}.Offset())
	assert.Equal(t, 20, CityQuery{PageNumber: 3, PageSize: 10}.Offset())
	assert.Equal(t, 0, CityQuery{PageNumber: 0, PageSize: 10}.Offset())
	assert.False(t, CityQuery{PageNumber: -1, PageSize: 10}.InRange())
	assert.True(t, CityQuery{PageNumber: 99, PageSize: 10}.InRange())
}

func TestCityWithoutPointsOfInterest(t *testing.T) {
	city := City{ID: 1, Name: "Antwerp", PointsOfInterest: []PointOfInterest{{ID: 1}, {ID: 2}}}
	city.SyncPointOfInterestCount()

	light := city.WithoutPointsOfInterest()
	assert.Nil(t, light.PointsOfInterest)
	assert.Equal(t, 2, light.PointOfInterestCount)
	assert.Len(t, city.PointsOfInterest, 2)
}
