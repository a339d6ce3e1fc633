package repositories

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/restream/reindexer/v4"
	// Используем cproto (RPC) протокол, он быстрее и эффективнее стандартного HTTP.
	_ "github.com/restream/reindexer/v4/bindings/cproto"
	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/domain"
)

const (
	// Имя пространства имен по умолчанию для городов.
	defaultCitiesNamespace = "cities"

	// Настройки для управления соединениями.
	defaultMaxRetries     = 3
	defaultRetryDelay     = 1 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultQueryTimeout   = 5 * time.Second
)

// Поля, которые читаются, когда дочерние точки интереса не нужны.
var cityLightFields = []string{"id", "name", "description", "poi_count"}

// HealthStatus хранит текущее состояние подключения к базе.
type HealthStatus struct {
	IsHealthy   bool
	LastCheck   time.Time
	LastError   error
	Connections int
}

// ReindexerRepository служит прослойкой между бизнес-логикой и Reindexer.
// Управляет пулом соединений, следит за здоровьем базы и выполняет
// запросы списка и поиска городов.
type ReindexerRepository struct {
	dsn            string
	namespace      string
	maxConnections int
	logger         *zap.Logger

	mu          sync.RWMutex
	db          *reindexer.Reindexer
	connections []*reindexer.Reindexer
	poolSize    int
	next        atomic.Uint64 // round-robin по пулу

	healthStatus atomic.Value // *HealthStatus

	collectionsInitialized atomic.Bool
	collectionsMu          sync.Mutex
}

// NewReindexerRepository создает репозиторий и сразу подключается к базе.
func NewReindexerRepository(dsn, namespace string, maxConnections int, logger *zap.Logger) (*ReindexerRepository, error) {
	if maxConnections < 1 {
		maxConnections = 1
	}
	if namespace == "" {
		namespace = defaultCitiesNamespace
	}

	repo := &ReindexerRepository{
		dsn:            dsn,
		namespace:      namespace,
		maxConnections: maxConnections,
		logger:         logger.With(zap.String("component", "reindexer")),
		poolSize:       maxConnections,
		connections:    make([]*reindexer.Reindexer, 0, maxConnections),
	}

	repo.healthStatus.Store(&HealthStatus{
		IsHealthy: false,
		LastCheck: time.Now(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := repo.Connect(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе: %w", err)
	}

	return repo, nil
}

// Connect устанавливает соединение с повторными попытками.
func (r *ReindexerRepository) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connectWithRetry(ctx, defaultMaxRetries)
}

func (r *ReindexerRepository) connectWithRetry(ctx context.Context, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			delay := defaultRetryDelay * time.Duration(attempt)
			r.logger.Info("повторная попытка подключения",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			time.Sleep(delay)
		}

		db := reindexer.NewReindex(r.dsn, reindexer.WithCreateDBIfMissing())
		if err := r.testConnection(ctx, db); err != nil {
			lastErr = err
			db.Close()
			r.logger.Warn("тест соединения провален",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		// Закрываем старые соединения при переподключении.
		if r.db != nil {
			r.db.Close()
		}
		for _, conn := range r.connections {
			if conn != nil {
				conn.Close()
			}
		}

		r.db = db
		r.connections = make([]*reindexer.Reindexer, 0, r.poolSize)
		for i := 0; i < r.poolSize; i++ {
			conn := reindexer.NewReindex(r.dsn, reindexer.WithCreateDBIfMissing())
			if err := r.testConnection(ctx, conn); err != nil {
				conn.Close()
				r.logger.Warn("не удалось создать соединение в пуле",
					zap.Int("index", i),
					zap.Error(err),
				)
				continue
			}
			r.connections = append(r.connections, conn)
		}
		r.collectionsInitialized.Store(false)

		r.updateHealthStatus(true, nil, len(r.connections)+1)
		r.logger.Info("успешно подключились к Reindexer",
			zap.Int("pool_size", len(r.connections)),
		)
		return nil
	}

	r.updateHealthStatus(false, lastErr, 0)
	return fmt.Errorf("не удалось подключиться после %d попыток: %w", maxRetries, lastErr)
}

// testConnection проверяет статус соединения, который ведет сам клиент.
func (r *ReindexerRepository) testConnection(ctx context.Context, db *reindexer.Reindexer) error {
	if db == nil {
		return fmt.Errorf("объект соединения nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return db.Status().Err
}

// getConnection возвращает соединение из пула по кругу.
func (r *ReindexerRepository) getConnection() *reindexer.Reindexer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.connections) == 0 {
		return r.db
	}
	idx := r.next.Add(1) % uint64(len(r.connections))
	return r.connections[idx]
}

func (r *ReindexerRepository) updateHealthStatus(isHealthy bool, err error, connections int) {
	r.healthStatus.Store(&HealthStatus{
		IsHealthy:   isHealthy,
		LastCheck:   time.Now(),
		LastError:   err,
		Connections: connections,
	})
}

// Health возвращает последний известный статус соединения.
func (r *ReindexerRepository) Health() *HealthStatus {
	status, _ := r.healthStatus.Load().(*HealthStatus)
	if status == nil {
		return &HealthStatus{IsHealthy: false}
	}
	return status
}

// HealthDetails отдает статус пула для /health.
func (r *ReindexerRepository) HealthDetails() map[string]interface{} {
	status := r.Health()
	details := map[string]interface{}{
		"healthy":     status.IsHealthy,
		"connections": status.Connections,
		"pool_size":   r.poolSize,
		"last_check":  status.LastCheck.Format(time.RFC3339),
	}
	if status.LastError != nil {
		details["last_error"] = status.LastError.Error()
	}
	return details
}

func (r *ReindexerRepository) markFailure(err error) {
	r.updateHealthStatus(false, err, r.Health().Connections)
}

// EnsureCollections открывает (и создает при отсутствии) неймспейс городов
// на главном соединении и на каждом соединении пула.
func (r *ReindexerRepository) EnsureCollections(ctx context.Context) error {
	if r.collectionsInitialized.Load() {
		return nil
	}

	r.collectionsMu.Lock()
	defer r.collectionsMu.Unlock()

	if r.collectionsInitialized.Load() {
		return nil
	}

	r.mu.RLock()
	db := r.db
	pool := append([]*reindexer.Reindexer(nil), r.connections...)
	r.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("соединение с базой не установлено")
	}

	opts := reindexer.DefaultNamespaceOptions()
	if err := db.OpenNamespace(r.namespace, opts, domain.City{}); err != nil {
		return fmt.Errorf("ошибка открытия неймспейса: %w", err)
	}

	for i, conn := range pool {
		if conn == nil {
			continue
		}
		if err := conn.OpenNamespace(r.namespace, opts, domain.City{}); err != nil {
			r.logger.Warn("ошибка открытия неймспейса для соединения из пула",
				zap.Int("index", i),
				zap.Error(err),
			)
		}
	}

	r.collectionsInitialized.Store(true)
	r.logger.Info("коллекции инициализированы", zap.String("namespace", r.namespace))
	return nil
}

// ListCities строит запрос с фильтрами, сортировкой по имени и ReqTotal
// для подсчета всех совпадений до пагинации.
func (r *ReindexerRepository) ListCities(ctx context.Context, query domain.CityQuery) ([]*domain.City, int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout*2)
	defer cancel()

	if err := r.EnsureCollections(ctx); err != nil {
		return nil, 0, fmt.Errorf("ошибка проверки коллекций: %w", err)
	}

	db := r.getConnection()
	if db == nil {
		return nil, 0, fmt.Errorf("нет доступного соединения с БД")
	}

	q := db.Query(r.namespace).
		Select(cityLightFields...).
		Sort("name", false).
		Sort("id", false).
		ReqTotal()

	// Индексы name и description созданы с collate_utf8, поэтому EQ и LIKE
	// сравнивают без учета регистра.
	if query.HasNameFilter() {
		q = q.Where("name", reindexer.EQ, query.Name)
	}
	if query.HasSearchQuery() {
		pattern := "%" + query.SearchQuery + "%"
		q = q.OpenBracket().
			Where("name", reindexer.LIKE, pattern).
			Or().
			Where("description", reindexer.LIKE, pattern).
			CloseBracket()
	}

	// Для страниц вне диапазона нужен только общий счетчик.
	if query.InRange() {
		q = q.Limit(query.PageSize).Offset(query.Offset())
	} else {
		q = q.Limit(1)
	}

	iter := q.ExecCtx(ctx)
	defer iter.Close()

	if err := iter.Error(); err != nil {
		r.markFailure(err)
		return nil, 0, fmt.Errorf("ошибка запроса списка: %w", err)
	}

	cities := make([]*domain.City, 0, iter.Count())
	for query.InRange() && iter.Next() {
		city, ok := iter.Object().(*domain.City)
		if !ok || city == nil {
			return nil, 0, fmt.Errorf("внутренняя ошибка десериализации: %T", iter.Object())
		}
		light := city.WithoutPointsOfInterest()
		cities = append(cities, &light)
	}
	if err := iter.Error(); err != nil {
		r.markFailure(err)
		return nil, 0, fmt.Errorf("ошибка чтения списка: %w", err)
	}

	return cities, iter.TotalCount(), nil
}

// GetCity получает город по ID. Точки интереса читаются только по запросу.
func (r *ReindexerRepository) GetCity(ctx context.Context, id int, includePointsOfInterest bool) (*domain.City, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if err := r.EnsureCollections(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки коллекций: %w", err)
	}

	db := r.getConnection()
	if db == nil {
		return nil, fmt.Errorf("нет доступного соединения с БД")
	}

	q := db.Query(r.namespace).Where("id", reindexer.EQ, id).Limit(1)
	if !includePointsOfInterest {
		q = q.Select(cityLightFields...)
	}

	iter := q.ExecCtx(ctx)
	defer iter.Close()

	if err := iter.Error(); err != nil {
		r.logger.Error("ошибка выполнения запроса",
			zap.Int("id", id),
			zap.Error(err),
		)
		r.markFailure(err)
		return nil, fmt.Errorf("ошибка запроса: %w", err)
	}

	if !iter.Next() {
		if err := iter.Error(); err != nil {
			r.markFailure(err)
			return nil, fmt.Errorf("ошибка чтения: %w", err)
		}
		return nil, fmt.Errorf("city %d: %w", id, domain.ErrCityNotFound)
	}

	city, ok := iter.Object().(*domain.City)
	if !ok || city == nil {
		return nil, fmt.Errorf("внутренняя ошибка десериализации: %T", iter.Object())
	}

	result := *city
	if !includePointsOfInterest {
		result.PointsOfInterest = nil
	}

	r.logger.Debug("город найден", zap.Int("id", id))
	return &result, nil
}

// SeedCities записывает города через Upsert вместе с вложенными точками интереса.
func (r *ReindexerRepository) SeedCities(ctx context.Context, cities []domain.City) error {
	if err := r.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("ошибка проверки коллекций: %w", err)
	}

	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("нет доступного соединения с БД")
	}

	for i := range cities {
		city := cities[i]
		city.SyncPointOfInterestCount()
		if err := db.Upsert(r.namespace, &city); err != nil {
			r.markFailure(err)
			return fmt.Errorf("ошибка при сохранении города %d: %w", city.ID, err)
		}
	}

	r.logger.Info("города загружены", zap.Int("count", len(cities)))
	return nil
}

// CheckConnection проверяет здоровье соединения (для внешних health check'ов).
func (r *ReindexerRepository) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("соединение не установлено")
	}

	if err := r.testConnection(ctx, db); err != nil {
		r.markFailure(err)
		return fmt.Errorf("проверка связи не прошла: %w", err)
	}

	r.updateHealthStatus(true, nil, r.Health().Connections)
	return nil
}

// Close закрывает все соединения с базой данных.
func (r *ReindexerRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
	for i, conn := range r.connections {
		if conn != nil {
			conn.Close()
			r.connections[i] = nil
		}
	}
	r.connections = r.connections[:0]
	r.updateHealthStatus(false, fmt.Errorf("соединение закрыто"), 0)

	return nil
}

var (
	_ domain.CityRepository = (*ReindexerRepository)(nil)
	_ domain.CitySeeder     = (*ReindexerRepository)(nil)
	_ domain.HealthChecker  = (*ReindexerRepository)(nil)
)
