// Package db owns the Postgres connection pool, embedded migrations and
// transaction helpers.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"esign-backend/internal/shared/telemetry"
)

// Profile selects pool sizing for a kind of process.
type Profile string

const (
	ProfileServer  Profile = "server"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// Options controls pool sizing and the startup ping.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var profiles = map[Profile]Options{
	ProfileServer:  {MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileLambda:  {MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: 15 * time.Minute, ConnMaxIdleTime: 30 * time.Second, PingTimeout: 3 * time.Second},
	ProfileMigrate: {MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
}

var (
	openDB = sql.Open

	sharedMu sync.Mutex
	sharedDB *sql.DB
)

// DetectProfile returns ProfileLambda inside AWS Lambda, else ProfileServer.
func DetectProfile() Profile {
	if strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != "" {
		return ProfileLambda
	}
	return ProfileServer
}

// OptionsFor returns the profile defaults with DB_* env overrides applied.
func OptionsFor(p Profile) Options {
	opts, ok := profiles[p]
	if !ok {
		opts = profiles[ProfileServer]
	}
	if v, ok := envInt("DB_MAX_OPEN_CONNS"); ok {
		opts.MaxOpenConns = v
	}
	if v, ok := envInt("DB_MAX_IDLE_CONNS"); ok {
		opts.MaxIdleConns = v
	}
	if v, ok := envDuration("DB_CONN_MAX_LIFETIME"); ok {
		opts.ConnMaxLifetime = v
	}
	if v, ok := envDuration("DB_CONN_MAX_IDLE_TIME"); ok {
		opts.ConnMaxIdleTime = v
	}
	if v, ok := envDuration("DB_PING_TIMEOUT"); ok {
		opts.PingTimeout = v
	}
	return opts
}

// Open connects for the given profile. Lambda invocations share one pool per
// execution environment; a failed attempt is retried on the next call.
func Open(ctx context.Context, databaseURL string, p Profile) (*sql.DB, error) {
	if p != ProfileLambda {
		return Connect(ctx, databaseURL, OptionsFor(p))
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedDB != nil {
		return sharedDB, nil
	}
	conn, err := Connect(ctx, databaseURL, OptionsFor(p))
	if err != nil {
		return nil, err
	}
	sharedDB = conn
	return sharedDB, nil
}

// Connect opens a pgx-backed pool and pings it.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is empty")
	}
	conn, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configurePool(conn, opts)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := conn.Stats()
	telemetry.Info("db.pool.ready", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return conn, nil
}

// Ping checks connectivity with a short deadline. A nil pool means the
// in-memory repositories are active and is reported healthy.
func Ping(ctx context.Context, conn *sql.DB) error {
	if conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return conn.PingContext(ctx)
}

func configurePool(conn *sql.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		conn.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "value": raw})
		return 0, false
	}
	return v, true
}

func envDuration(key string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "value": raw})
		return 0, false
	}
	return v, true
}
