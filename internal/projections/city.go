// Package projections maps persisted cities to their output shapes.
package projections

import "github.com/your-org/cityinfo/internal/domain"

// CityProjection is one of the two serializable views of a city
type CityProjection interface {
	cityProjection()
}

// CityWithoutPointsOfInterest is the light view: children are reduced to a count
type CityWithoutPointsOfInterest struct {
	ID                       int    `json:"id"`
	Name                     string `json:"name"`
	Description              string `json:"description"`
	NumberOfPointsOfInterest int    `json:"numberOfPointsOfInterest"`
}

// CityWithPointsOfInterest is the full view including every child
type CityWithPointsOfInterest struct {
	ID               int               `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	PointsOfInterest []PointOfInterest `json:"pointsOfInterest"`
}

// PointOfInterest is the output shape of a child
type PointOfInterest struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (*CityWithoutPointsOfInterest) cityProjection() {}
func (*CityWithPointsOfInterest) cityProjection()    {}

// ToCity selects the projection by the flag alone
func ToCity(city *domain.City, includePointsOfInterest bool) CityProjection {
	if includePointsOfInterest {
		return ToCityWithPointsOfInterest(city)
	}
	return ToCityWithoutPointsOfInterest(city)
}

// ToCityWithoutPointsOfInterest maps a city to the light view
func ToCityWithoutPointsOfInterest(city *domain.City) *CityWithoutPointsOfInterest {
	return &CityWithoutPointsOfInterest{
		ID:                       city.ID,
		Name:                     city.Name,
		Description:              city.Description,
		NumberOfPointsOfInterest: city.PointOfInterestCount,
	}
}

// ToCitiesWithoutPointsOfInterest maps a page of cities, preserving order.
// The result is never nil so an empty page encodes as [].
func ToCitiesWithoutPointsOfInterest(cities []*domain.City) []CityWithoutPointsOfInterest {
	out := make([]CityWithoutPointsOfInterest, 0, len(cities))
	for _, city := range cities {
		out = append(out, *ToCityWithoutPointsOfInterest(city))
	}
	return out
}

// ToCityWithPointsOfInterest maps a city to the full view, children in stored order
func ToCityWithPointsOfInterest(city *domain.City) *CityWithPointsOfInterest {
	pois := make([]PointOfInterest, 0, len(city.PointsOfInterest))
	for _, poi := range city.PointsOfInterest {
		pois = append(pois, PointOfInterest{
			ID:          poi.ID,
			Name:        poi.Name,
			Description: poi.Description,
		})
	}
	return &CityWithPointsOfInterest{
		ID:               city.ID,
		Name:             city.Name,
		Description:      city.Description,
		PointsOfInterest: pois,
	}
}
