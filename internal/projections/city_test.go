package projections

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/cityinfo/internal/domain"
)

func testCity() *domain.City {
	city := &domain.City{
		ID:          1,
		Name:        "New York City",
		Description: "The one with that big park.",
		PointsOfInterest: []domain.PointOfInterest{
			{ID: 2, Name: "Empire State Building", Description: "A 102-story skyscraper."},
			{ID: 1, Name: "Central Park", Description: "The most visited urban park."},
		},
	}
	city.SyncPointOfInterestCount()
	return city
}

func TestToCityWithoutPointsOfInterest(t *testing.T) {
	view := ToCityWithoutPointsOfInterest(testCity())
	assert.Equal(t, 1, view.ID)
	assert.Equal(t, "New York City", view.Name)
	assert.Equal(t, 2, view.NumberOfPointsOfInterest)

	raw, err := json.Marshal(view)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "pointsOfInterest")
	assert.Contains(t, fields, "numberOfPointsOfInterest")
}

func TestToCityWithPointsOfInterestPreservesOrder(t *testing.T) {
	view := ToCityWithPointsOfInterest(testCity())
	require.Len(t, view.PointsOfInterest, 2)
	assert.Equal(t, 2, view.PointsOfInterest[0].ID)
	assert.Equal(t, 1, view.PointsOfInterest[1].ID)
	assert.Equal(t, "Central Park", view.PointsOfInterest[1].Name)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "numberOfPointsOfInterest")
}

func TestToCityWithPointsOfInterestEmptyChildren(t *testing.T) {
	view := ToCityWithPointsOfInterest(&domain.City{ID: 9, Name: "Ghent"})

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pointsOfInterest":[]`)
}

func TestToCitySelectsByFlag(t *testing.T) {
	city := testCity()

	_, ok := ToCity(city, true).(*CityWithPointsOfInterest)
	assert.True(t, ok)

	_, ok = ToCity(city, false).(*CityWithoutPointsOfInterest)
	assert.True(t, ok)
}

func TestToCitiesWithoutPointsOfInterest(t *testing.T) {
	empty := ToCitiesWithoutPointsOfInterest(nil)
	require.NotNil(t, empty)

	raw, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	views := ToCitiesWithoutPointsOfInterest([]*domain.City{
		{ID: 2, Name: "B"},
		{ID: 1, Name: "A"},
	})
	require.Len(t, views, 2)
	assert.Equal(t, "B", views[0].Name)
	assert.Equal(t, "A", views[1].Name)
}
