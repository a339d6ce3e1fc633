package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/domain"
)

const defaultMongoCollection = "cities"

// Strength 2 compares case-insensitively but accent-sensitively.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

type mongoCity struct {
	ID                   int                    `bson:"_id"`
	Name                 string                 `bson:"name"`
	Description          string                 `bson:"description"`
	PointOfInterestCount int                    `bson:"poi_count"`
	PointsOfInterest     []mongoPointOfInterest `bson:"points_of_interest,omitempty"`
}

type mongoPointOfInterest struct {
	ID          int    `bson:"id"`
	Name        string `bson:"name"`
	Description string `bson:"description"`
}

func (m mongoCity) toDomain() *domain.City {
	city := &domain.City{
		ID:                   m.ID,
		Name:                 m.Name,
		Description:          m.Description,
		PointOfInterestCount: m.PointOfInterestCount,
	}
	if m.PointsOfInterest != nil {
		city.PointsOfInterest = make([]domain.PointOfInterest, 0, len(m.PointsOfInterest))
		for _, poi := range m.PointsOfInterest {
			city.PointsOfInterest = append(city.PointsOfInterest, domain.PointOfInterest(poi))
		}
	}
	return city
}

func newMongoCity(city domain.City) mongoCity {
	doc := mongoCity{
		ID:                   city.ID,
		Name:                 city.Name,
		Description:          city.Description,
		PointOfInterestCount: len(city.PointsOfInterest),
		PointsOfInterest:     make([]mongoPointOfInterest, 0, len(city.PointsOfInterest)),
	}
	for _, poi := range city.PointsOfInterest {
		doc.PointsOfInterest = append(doc.PointsOfInterest, mongoPointOfInterest(poi))
	}
	return doc
}

// MongoRepository stores each city as one document with embedded points of interest
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoRepository connects to MongoDB and verifies the connection
func NewMongoRepository(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*MongoRepository, error) {
	if collection == "" {
		collection = defaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	repo := &MongoRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With(zap.String("component", "mongo")),
	}

	if err := repo.CheckConnection(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return repo, nil
}

// CheckConnection pings the primary
func (r *MongoRepository) CheckConnection(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// EnsureCollections creates the case-insensitive name index
func (r *MongoRepository) EnsureCollections(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("name_ci").SetCollation(caseInsensitive),
	})
	if err != nil {
		return fmt.Errorf("create name index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func mongoFilter(query domain.CityQuery) bson.M {
	filter := bson.M{}
	if query.HasNameFilter() {
		// Equality becomes case-insensitive through the collation.
		filter["name"] = query.Name
	}
	if query.HasSearchQuery() {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query.SearchQuery), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	return filter
}

// ListCities counts the matches and reads one page without children
func (r *MongoRepository) ListCities(ctx context.Context, query domain.CityQuery) ([]*domain.City, int, error) {
	filter := mongoFilter(query)

	total, err := r.collection.CountDocuments(ctx, filter, options.Count().SetCollation(caseInsensitive))
	if err != nil {
		return nil, 0, fmt.Errorf("count cities: %w", err)
	}

	cities := make([]*domain.City, 0)
	if !query.InRange() || int64(query.Offset()) >= total {
		return cities, int(total), nil
	}

	opts := options.Find().
		SetCollation(caseInsensitive).
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(query.Offset())).
		SetLimit(int64(query.PageSize)).
		SetProjection(bson.M{"points_of_interest": 0})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find cities: %w", err)
	}

	var docs []mongoCity
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode cities: %w", err)
	}

	for _, doc := range docs {
		cities = append(cities, doc.toDomain())
	}
	return cities, int(total), nil
}

// GetCity reads one document, projecting children away unless requested
func (r *MongoRepository) GetCity(ctx context.Context, id int, includePointsOfInterest bool) (*domain.City, error) {
	opts := options.FindOne()
	if !includePointsOfInterest {
		opts.SetProjection(bson.M{"points_of_interest": 0})
	}

	var doc mongoCity
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("city %d: %w", id, domain.ErrCityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find city %d: %w", id, err)
	}

	city := doc.toDomain()
	if includePointsOfInterest && city.PointsOfInterest == nil {
		city.PointsOfInterest = []domain.PointOfInterest{}
	}
	return city, nil
}

// SeedCities replaces each city document, inserting it when absent
func (r *MongoRepository) SeedCities(ctx context.Context, cities []domain.City) error {
	for _, city := range cities {
		doc := newMongoCity(city)
		_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": city.ID}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert city %d: %w", city.ID, err)
		}
	}

	r.logger.Info("cities seeded", zap.Int("count", len(cities)))
	return nil
}

var (
	_ domain.CityRepository = (*MongoRepository)(nil)
	_ domain.CitySeeder     = (*MongoRepository)(nil)
	_ domain.HealthChecker  = (*MongoRepository)(nil)
)
