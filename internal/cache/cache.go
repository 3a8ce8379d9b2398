package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/minio/highwayhash"
	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
)

const (
	CacheVersion   = "1"
	DefaultMaxAge  = 7 * 24 * time.Hour // 7 days
	DatabaseName   = "results.db"
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	resultsTable   = "lint_results"
	entryKeyLength = 64
)

var hashKey = []byte("DrupalSecurity-result-cache-key!")

// ResultCache stores the diagnostics of an artifact keyed by its path,
// content hash and the fingerprint of the active rule set. A changed file
// or a changed rule set is simply a miss.
type ResultCache struct {
	db          *sql.DB
	driver      string
	logger      *zap.Logger
	maxAge      time.Duration
	fingerprint string
}

// CacheEntry is one stored result row.
type CacheEntry struct {
	Path        string            `json:"path"`
	FileHash    string            `json:"file_hash"`
	Fingerprint string            `json:"fingerprint"`
	CreatedAt   time.Time         `json:"created_at"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// New opens the cache database described by cfg. SQLite databases live in
// cfg.Directory unless a DSN is given; MySQL always needs a DSN.
func New(cfg config.CacheConfig, fingerprint string, logger *zap.Logger) (*ResultCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := cfg.DSN
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dir := cfg.Directory
			if dir == "" {
				dir = "."
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
			dsn = filepath.Join(dir, DatabaseName) + "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("cache driver %q requires a dsn", driver)
		}
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	maxAge := DefaultMaxAge
	if cfg.MaxAge > 0 {
		maxAge = time.Duration(cfg.MaxAge) * time.Hour
	}

	c := &ResultCache{
		db:          db,
		driver:      driver,
		logger:      logger,
		maxAge:      maxAge,
		fingerprint: fingerprint,
	}
	if err := c.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *ResultCache) initSchema(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS ` + resultsTable + ` (
		entry_key VARCHAR(64) NOT NULL PRIMARY KEY,
		path VARCHAR(255) NOT NULL,
		file_hash VARCHAR(32) NOT NULL,
		fingerprint VARCHAR(32) NOT NULL,
		version VARCHAR(8) NOT NULL,
		diagnostics TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close releases the database handle.
func (c *ResultCache) Close() error {
	return c.db.Close()
}

// Driver returns the database driver in use.
func (c *ResultCache) Driver() string {
	return c.driver
}

// Get returns the cached diagnostics for path with the given contents.
func (c *ResultCache) Get(ctx context.Context, path string, contents []byte) ([]diag.Diagnostic, bool) {
	fileHash, err := ContentHash(contents)
	if err != nil {
		c.logger.Debug("Cache miss - failed to hash contents", zap.String("file", path), zap.Error(err))
		return nil, false
	}

	var (
		payload   string
		createdAt int64
	)
	row := c.db.QueryRowContext(ctx,
		`SELECT diagnostics, created_at FROM `+resultsTable+` WHERE entry_key = ? AND version = ?`,
		c.entryKey(path, fileHash), CacheVersion)
	if err := row.Scan(&payload, &createdAt); err != nil {
		if err != sql.ErrNoRows {
			c.logger.Debug("Cache miss - query failed", zap.String("file", path), zap.Error(err))
		}
		return nil, false
	}

	if time.Since(time.Unix(createdAt, 0)) > c.maxAge {
		c.logger.Debug("Cache miss - entry expired", zap.String("file", path))
		return nil, false
	}

	var diagnostics []diag.Diagnostic
	if err := json.Unmarshal([]byte(payload), &diagnostics); err != nil {
		c.logger.Debug("Cache miss - corrupt entry", zap.String("file", path), zap.Error(err))
		return nil, false
	}

	c.logger.Debug("Cache hit", zap.String("file", path))
	return diagnostics, true
}

// Set stores diagnostics for path with the given contents, replacing any
// previous entry under the same key.
func (c *ResultCache) Set(ctx context.Context, path string, contents []byte, diagnostics []diag.Diagnostic) error {
	fileHash, err := ContentHash(contents)
	if err != nil {
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	if diagnostics == nil {
		diagnostics = []diag.Diagnostic{}
	}
	payload, err := json.Marshal(diagnostics)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`REPLACE INTO `+resultsTable+` (entry_key, path, file_hash, fingerprint, version, diagnostics, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.entryKey(path, fileHash), truncate(path, 255), fileHash, c.fingerprint, CacheVersion, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	c.logger.Debug("Cached result", zap.String("file", path), zap.Int("diagnostics", len(diagnostics)))
	return nil
}

// Clean removes entries older than the configured max age and returns how
// many rows were deleted.
func (c *ResultCache) Clean(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-c.maxAge).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM `+resultsTable+` WHERE created_at < ? OR version <> ?`, cutoff, CacheVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to clean cache: %w", err)
	}
	removed, _ := res.RowsAffected()
	c.logger.Info("Cache cleanup completed", zap.Int64("removed", removed))
	return removed, nil
}

// Clear removes every entry.
func (c *ResultCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM `+resultsTable); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetStats returns entry counts for the cache.
func (c *ResultCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var total, current int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+resultsTable).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+resultsTable+` WHERE fingerprint = ?`, c.fingerprint).Scan(&current); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	return map[string]interface{}{
		"driver":          c.driver,
		"total_entries":   total,
		"current_entries": current,
		"max_age_hours":   c.maxAge.Hours(),
		"version":         CacheVersion,
	}, nil
}

func (c *ResultCache) entryKey(path, fileHash string) string {
	sum, _ := ContentHash([]byte(path + "\x00" + fileHash + "\x00" + c.fingerprint))
	key := sum + fileHash + c.fingerprint
	return truncate(key, entryKeyLength)
}

// ContentHash returns the hex HighwayHash-64 of data.
func ContentHash(data []byte) (string, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", err
	}
	if _, err := h.Write(data); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint hashes the parts describing a rule set, e.g. rule IDs and
// tracked tables. Order matters.
func Fingerprint(parts ...string) string {
	sum, _ := ContentHash([]byte(strings.Join(parts, "\x00")))
	return sum
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
