package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/domain"
	"github.com/your-org/cityinfo/internal/metrics"
	"github.com/your-org/cityinfo/internal/projections"
)

const (
	// MaxCitiesPageSize: верхняя граница размера страницы. Большие значения
	// молча уменьшаются до нее, ошибкой это не считается.
	MaxCitiesPageSize = 20

	DefaultPageNumber = 1
	DefaultPageSize   = 10
)

// CityUsecase обслуживает запросы к городам.
// Нормализует параметры, делает ровно один вызов репозитория на операцию
// и выбирает проекцию ответа. Состояния между запросами не хранит.
type CityUsecase struct {
	repo        domain.CityRepository
	logger      *zap.Logger
	rateLimiter *RateLimiter
}

// RateLimiter ограничивает нагрузку семафором.
// Не дает выполнить больше N запросов к репозиторию одновременно.
type RateLimiter struct {
	semaphore     chan struct{}
	maxConcurrent int
}

// NewRateLimiter создает ограничитель с буфером на maxConcurrent запросов.
func NewRateLimiter(maxConcurrent int) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 10
	}
	return &RateLimiter{
		semaphore:     make(chan struct{}, maxConcurrent),
		maxConcurrent: maxConcurrent,
	}
}

// Acquire ждет свободный слот или отмену контекста.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case rl.semaphore <- struct{}{}:
		return nil
	}
}

// Release освобождает слот.
func (rl *RateLimiter) Release() {
	select {
	case <-rl.semaphore:
	default:
	}
}

// ListCitiesParams содержит параметры запроса списка в том виде, в каком их передал клиент.
type ListCitiesParams struct {
	Name        string
	SearchQuery string
	PageNumber  int
	PageSize    int
}

// CityPage содержит страницу легких проекций и метаданные пагинации.
// Метаданные передаются отдельно от тела (заголовок X-Pagination).
// Номер страницы не нормализуется: при pageNumber <= 0 Items пуст,
// CurrentPage повторяет запрошенное значение (0 или отрицательное),
// TotalItemCount и TotalPages считаются как обычно.
type CityPage struct {
	Items      []projections.CityWithoutPointsOfInterest
	Pagination domain.PaginationMetadata
}

// NewCityUsecase создает шлюз запросов.
func NewCityUsecase(repo domain.CityRepository, logger *zap.Logger, maxConcurrentOps int) *CityUsecase {
	return &CityUsecase{
		repo:        repo,
		logger:      logger,
		rateLimiter: NewRateLimiter(maxConcurrentOps),
	}
}

// normalize приводит параметры к запросу репозитория.
func (u *CityUsecase) normalize(params ListCitiesParams) domain.CityQuery {
	pageSize := params.PageSize
	switch {
	case pageSize > MaxCitiesPageSize:
		u.logger.Debug("размер страницы уменьшен до максимума",
			zap.Int("requested", pageSize),
			zap.Int("max", MaxCitiesPageSize),
		)
		metrics.PageSizeClamped.Inc()
		pageSize = MaxCitiesPageSize
	case pageSize < 1:
		pageSize = DefaultPageSize
	}

	return domain.CityQuery{
		Name:        strings.TrimSpace(params.Name),
		SearchQuery: strings.TrimSpace(params.SearchQuery),
		PageNumber:  params.PageNumber,
		PageSize:    pageSize,
	}
}

// ListCities возвращает страницу городов без точек интереса.
// Пустой результат считается успехом с пустым списком и totalItemCount = 0.
func (u *CityUsecase) ListCities(ctx context.Context, params ListCitiesParams) (*CityPage, error) {
	query := u.normalize(params)

	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	cities, total, err := u.repo.ListCities(ctx, query)
	if err != nil {
		metrics.RepositoryQueries.WithLabelValues("list", "error").Inc()
		u.logger.Error("ошибка получения списка городов",
			zap.String("name", query.Name),
			zap.String("search_query", query.SearchQuery),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list cities: %w", err)
	}
	metrics.RepositoryQueries.WithLabelValues("list", "ok").Inc()

	return &CityPage{
		Items:      projections.ToCitiesWithoutPointsOfInterest(cities),
		Pagination: domain.NewPaginationMetadata(total, query.PageSize, query.PageNumber),
	}, nil
}

// GetCity возвращает город в одной из двух проекций, выбранной флагом.
// Если города нет, возвращается domain.ErrCityNotFound.
func (u *CityUsecase) GetCity(ctx context.Context, id int, includePointsOfInterest bool) (projections.CityProjection, error) {
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	city, err := u.repo.GetCity(ctx, id, includePointsOfInterest)
	if errors.Is(err, domain.ErrCityNotFound) {
		metrics.RepositoryQueries.WithLabelValues("get", "not_found").Inc()
		u.logger.Debug("город не найден", zap.Int("id", id))
		return nil, err
	}
	if err != nil {
		metrics.RepositoryQueries.WithLabelValues("get", "error").Inc()
		u.logger.Error("не удалось получить город",
			zap.Int("id", id),
			zap.Bool("include_points_of_interest", includePointsOfInterest),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get city %d: %w", id, err)
	}
	metrics.RepositoryQueries.WithLabelValues("get", "ok").Inc()

	return projections.ToCity(city, includePointsOfInterest), nil
}
