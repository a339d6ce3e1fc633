package repositories

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/your-org/cityinfo/internal/domain"
)

//go:embed seed/cities.yaml
var defaultSeed []byte

type seedFile struct {
	Cities []seedCity `yaml:"cities" validate:"dive"`
}

type seedCity struct {
	ID               int                   `yaml:"id" validate:"min=1"`
	Name             string                `yaml:"name" validate:"required,max=50"`
	Description      string                `yaml:"description" validate:"max=200"`
	PointsOfInterest []seedPointOfInterest `yaml:"points_of_interest" validate:"dive"`
}

type seedPointOfInterest struct {
	ID          int    `yaml:"id" validate:"min=1"`
	Name        string `yaml:"name" validate:"required,max=50"`
	Description string `yaml:"description" validate:"max=200"`
}

func (c seedCity) toDomain() domain.City {
	city := domain.City{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		PointsOfInterest: make([]domain.PointOfInterest, 0, len(c.PointsOfInterest)),
	}
	for _, poi := range c.PointsOfInterest {
		city.PointsOfInterest = append(city.PointsOfInterest, domain.PointOfInterest(poi))
	}
	city.SyncPointOfInterestCount()
	return city
}

// LoadSeed reads cities from a YAML seed file.
// An empty path yields the built-in seed.
func LoadSeed(path string) ([]domain.City, error) {
	raw := defaultSeed
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		raw = data
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates YAML seed data
func ParseSeed(raw []byte) ([]domain.City, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	cities := make([]domain.City, 0, len(file.Cities))
	cityIDs := make(map[int]struct{}, len(file.Cities))
	poiIDs := make(map[int]struct{})
	for _, city := range file.Cities {
		if _, dup := cityIDs[city.ID]; dup {
			return nil, fmt.Errorf("seed city %d: duplicate id", city.ID)
		}
		cityIDs[city.ID] = struct{}{}

		for _, poi := range city.PointsOfInterest {
			if _, dup := poiIDs[poi.ID]; dup {
				return nil, fmt.Errorf("seed point of interest %d: duplicate id", poi.ID)
			}
			poiIDs[poi.ID] = struct{}{}
		}
		cities = append(cities, city.toDomain())
	}

	return cities, nil
}
