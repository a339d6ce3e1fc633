package domain

import (
	"context"
	"errors"
)

// ErrCityNotFound is returned when no city has the requested ID
var ErrCityNotFound = errors.New("city not found")

// CityRepository defines the read interface for city persistence
type CityRepository interface {
	// ListCities returns one page of cities matching the query, ordered by
	// name, together with the total number of matches before pagination.
	// Children are never hydrated.
	ListCities(ctx context.Context, query CityQuery) ([]*City, int, error)

	// GetCity retrieves a city by ID, loading its points of interest only
	// when includePointsOfInterest is set. Returns ErrCityNotFound if absent.
	GetCity(ctx context.Context, id int, includePointsOfInterest bool) (*City, error)
}

// CitySeeder loads cities into a store at bootstrap
type CitySeeder interface {
	// SeedCities upserts the given cities together with their points of interest
	SeedCities(ctx context.Context, cities []City) error
}

// HealthChecker defines the interface for health checks
type HealthChecker interface {
	// CheckConnection checks if the database connection is healthy
	CheckConnection(ctx context.Context) error

	// EnsureCollections ensures that required collections/namespaces exist
	EnsureCollections(ctx context.Context) error
}
