package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/your-org/cityinfo/internal/domain"
)

// NOCASE and lower() fold ASCII only, so cities carry name_fold and
// description_fold columns lowered in Go; filters and ordering use them.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id               INTEGER PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		name_fold        TEXT NOT NULL DEFAULT '',
		description_fold TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS points_of_interest (
		id          INTEGER PRIMARY KEY,
		city_id     INTEGER NOT NULL REFERENCES cities (id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_poi_city ON points_of_interest (city_id, position)`,
}

// sqliteFoldIndexes run after the fold columns are guaranteed to exist
var sqliteFoldIndexes = []string{
	`DROP INDEX IF EXISTS idx_cities_name`,
	`CREATE INDEX IF NOT EXISTS idx_cities_name_fold ON cities (name_fold, id)`,
}

// fold lowers text the same way the in-memory store compares it
func fold(s string) string {
	return strings.ToLower(s)
}

// SQLiteRepository stores cities in SQLite through database/sql
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteRepository opens (or creates) the database at path.
// Use ":memory:" for a private in-memory database.
func NewSQLiteRepository(path string, logger *zap.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Each connection to ":memory:" would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma wal: %w", err)
		}
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.With(zap.String("component", "sqlite")),
	}, nil
}

// EnsureCollections creates the tables and indexes if missing and upgrades
// databases created before the fold columns existed
func (r *SQLiteRepository) EnsureCollections(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if err := r.addFoldColumns(ctx); err != nil {
		return err
	}
	for _, stmt := range sqliteFoldIndexes {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) addFoldColumns(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('cities')`)
	if err != nil {
		return fmt.Errorf("inspect cities: %w", err)
	}
	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("inspect cities: %w", err)
		}
		columns[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect cities: %w", err)
	}
	if columns["name_fold"] && columns["description_fold"] {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fold migration: %w", err)
	}
	defer tx.Rollback()

	for _, column := range []string{"name_fold", "description_fold"} {
		if columns[column] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE cities ADD COLUMN `+column+` TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add column %s: %w", column, err)
		}
	}
	if err := refold(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fold migration: %w", err)
	}

	r.logger.Info("fold columns added to cities")
	return nil
}

// refold recomputes the fold columns of every city
func refold(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, description FROM cities`)
	if err != nil {
		return fmt.Errorf("select cities to fold: %w", err)
	}
	type foldRow struct {
		id                int
		name, description string
	}
	var pending []foldRow
	for rows.Next() {
		var row foldRow
		if err := rows.Scan(&row.id, &row.name, &row.description); err != nil {
			rows.Close()
			return fmt.Errorf("scan city to fold: %w", err)
		}
		pending = append(pending, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cities to fold: %w", err)
	}

	for _, row := range pending {
		if _, err := tx.ExecContext(ctx,
			`UPDATE cities SET name_fold = ?, description_fold = ? WHERE id = ?`,
			fold(row.name), fold(row.description), row.id,
		); err != nil {
			return fmt.Errorf("fold city %d: %w", row.id, err)
		}
	}
	return nil
}

// CheckConnection pings the database
func (r *SQLiteRepository) CheckConnection(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func sqliteWhere(query domain.CityQuery) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if query.HasNameFilter() {
		clauses = append(clauses, "c.name_fold = ?")
		args = append(args, fold(query.Name))
	}
	if query.HasSearchQuery() {
		needle := fold(query.SearchQuery)
		clauses = append(clauses, "(instr(c.name_fold, ?) > 0 OR instr(c.description_fold, ?) > 0)")
		args = append(args, needle, needle)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListCities counts the matches, then reads one page with the child count
func (r *SQLiteRepository) ListCities(ctx context.Context, query domain.CityQuery) ([]*domain.City, int, error) {
	where, args := sqliteWhere(query)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cities c"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cities: %w", err)
	}

	cities := make([]*domain.City, 0)
	if !query.InRange() || query.Offset() >= total {
		return cities, total, nil
	}

	r.logger.Debug("sql", zap.String("op", "select"), zap.String("table", "cities"),
		zap.Int("offset", query.Offset()), zap.Int("limit", query.PageSize))

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description,
		        (SELECT COUNT(*) FROM points_of_interest p WHERE p.city_id = c.id)
		 FROM cities c`+where+`
		 ORDER BY c.name_fold, c.id
		 LIMIT ? OFFSET ?`,
		append(args, query.PageSize, query.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select cities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var city domain.City
		if err := rows.Scan(&city.ID, &city.Name, &city.Description, &city.PointOfInterestCount); err != nil {
			return nil, 0, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, &city)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cities: %w", err)
	}

	return cities, total, nil
}

// GetCity reads one city; children are queried only when requested
func (r *SQLiteRepository) GetCity(ctx context.Context, id int, includePointsOfInterest bool) (*domain.City, error) {
	var city domain.City
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.description,
		        (SELECT COUNT(*) FROM points_of_interest p WHERE p.city_id = c.id)
		 FROM cities c WHERE c.id = ?`, id,
	).Scan(&city.ID, &city.Name, &city.Description, &city.PointOfInterestCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("city %d: %w", id, domain.ErrCityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select city %d: %w", id, err)
	}

	if !includePointsOfInterest {
		return &city, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM points_of_interest
		 WHERE city_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select points of interest: %w", err)
	}
	defer rows.Close()

	city.PointsOfInterest = make([]domain.PointOfInterest, 0, city.PointOfInterestCount)
	for rows.Next() {
		var poi domain.PointOfInterest
		if err := rows.Scan(&poi.ID, &poi.Name, &poi.Description); err != nil {
			return nil, fmt.Errorf("scan point of interest: %w", err)
		}
		city.PointsOfInterest = append(city.PointsOfInterest, poi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points of interest: %w", err)
	}

	return &city, nil
}

// SeedCities replaces each given city and its children in one transaction
func (r *SQLiteRepository) SeedCities(ctx context.Context, cities []domain.City) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, city := range cities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cities (id, name, description, name_fold, description_fold) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, description = excluded.description,
			 name_fold = excluded.name_fold, description_fold = excluded.description_fold`,
			city.ID, city.Name, city.Description, fold(city.Name), fold(city.Description),
		); err != nil {
			return fmt.Errorf("upsert city %d: %w", city.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM points_of_interest WHERE city_id = ?`, city.ID); err != nil {
			return fmt.Errorf("clear points of interest of city %d: %w", city.ID, err)
		}
		for pos, poi := range city.PointsOfInterest {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO points_of_interest (id, city_id, position, name, description) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET city_id = excluded.city_id, position = excluded.position,
				 name = excluded.name, description = excluded.description`,
				poi.ID, city.ID, pos, poi.Name, poi.Description,
			); err != nil {
				return fmt.Errorf("upsert point of interest %d: %w", poi.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	r.logger.Info("cities seeded", zap.Int("count", len(cities)))
	return nil
}

var (
	_ domain.CityRepository = (*SQLiteRepository)(nil)
	_ domain.CitySeeder     = (*SQLiteRepository)(nil)
	_ domain.HealthChecker  = (*SQLiteRepository)(nil)
)
