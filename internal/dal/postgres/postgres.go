package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/viper"
)

const (
	defaultMigrationsPath = "./migrations"
	connectTimeout        = 10 * time.Second
)

// GenericConn is satisfied by both *pgxpool.Pool and pgx.Tx.
type GenericConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Client owns the storefront connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// MustNewClient connects to Postgres and applies pending migrations.
func MustNewClient() *Client {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn())
	if err != nil {
		panic(fmt.Sprintf("Invalid postgres config: %v", err))
	}
	if maxConns := viper.GetInt32("postgres.max_conns"); maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create postgres pool: %v", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		panic(fmt.Sprintf("Failed to reach postgres: %v", err))
	}

	if err := migrate(pool); err != nil {
		pool.Close()
		panic(err)
	}

	slog.Info("Postgres connected", "host", cfg.ConnConfig.Host, "db", cfg.ConnConfig.Database)

	return &Client{pool: pool}
}

// Pool returns the underlying connection pool.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close closes the pool for graceful shutdown.
func (c *Client) Close() {
	c.pool.Close()
}

func dsn() string {
	port := os.Getenv("STOREFRONT_PG_PORT")
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("STOREFRONT_PG_HOST"),
		port,
		os.Getenv("STOREFRONT_PG_USER"),
		os.Getenv("STOREFRONT_PG_PASSWORD"),
		os.Getenv("STOREFRONT_PG_DB"),
	)
}

func migrate(pool *pgxpool.Pool) error {
	dir := viper.GetString("postgres.migrations_path")
	if dir == "" {
		dir = defaultMigrationsPath
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.Up(db, dir); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("failed to apply migrations from %s: %w", dir, err)
	}

	return nil
}
