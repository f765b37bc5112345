package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/passbi/passbi_planner/internal/models"
	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

var ErrLockTimeout = errors.New("timeout waiting for lock")

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	MutexTTL time.Duration
	TLS      bool
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	mutexTTL, _ := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
		MutexTTL: mutexTTL,
		TLS:      getEnv("REDIS_TLS_ENABLED", "false") == "true",
	}
}

// GetClient returns the global Redis client (singleton pattern)
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		client, clientErr = newClient(LoadConfigFromEnv())
	})
	return client, clientErr
}

func newClient(config *Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Enable TLS if configured (required for Upstash)
	if config.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	c := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return c, nil
}

// Close closes the Redis client
func Close() {
	if client != nil {
		client.Close()
	}
}

// PlanKey generates the cache key of a plan query. Queries are cached per
// minute of the requested time.
func PlanKey(fromLat, fromLon, toLat, toLon float64, seconds int, arriveBy bool) string {
	data := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%d,%t", fromLat, fromLon, toLat, toLon, seconds/60, arriveBy)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("plan:%x", hash[:8])
}

// LockKey generates a mutex lock key
func LockKey(planKey string) string {
	return fmt.Sprintf("lock:%s", planKey)
}

// Store caches the plans of every strategy of a query in Redis
type Store struct {
	client       *redis.Client
	ttl          time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
}

// NewStore wraps a connected client
func NewStore(c *redis.Client, config *Config) *Store {
	return &Store{client: c, ttl: config.TTL, lockTTL: config.MutexTTL, pollInterval: 100 * time.Millisecond}
}

// GetPlans retrieves cached plans. A miss returns nil without error.
func (s *Store) GetPlans(ctx context.Context, key string) (map[string]*models.Plan, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}

	var plans map[string]*models.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached plans: %w", err)
	}
	return plans, nil
}

// SetPlans caches plans
func (s *Store) SetPlans(ctx context.Context, key string, plans map[string]*models.Plan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to marshal plans: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// AcquireLock attempts to acquire the computation lock of a key.
// Returns true if lock was acquired, false if already locked
func (s *Store) AcquireLock(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, LockKey(key), "1", s.lockTTL).Result()
}

// ReleaseLock releases the computation lock of a key
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.client.Del(ctx, LockKey(key)).Err()
}

// WaitForPlans waits for the lock holder to finish and then reads its result.
// This implements the "wait for result" pattern to avoid thundering herd
func (s *Store) WaitForPlans(ctx context.Context, key string, maxWait time.Duration) (map[string]*models.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	lockKey := LockKey(key)
	for {
		exists, err := s.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			return s.GetPlans(ctx, key)
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// HealthCheck performs a health check on the Redis connection
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

// Stats returns Redis connection pool stats
func (s *Store) Stats() map[string]interface{} {
	poolStats := s.client.PoolStats()
	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
