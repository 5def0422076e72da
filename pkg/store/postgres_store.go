package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/mediafs/mediad/pkg/media"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// PostgresConfig configures the Postgres-backed store.
type PostgresConfig struct {
	DSN string
}

// PostgresStore persists blobs in a mediafiles table through a pgx pool.
// Upserts ride on ON CONFLICT, so readers of the same id see the old or
// the new row, never a mix.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore applies pending migrations and opens the pool.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, log *logrus.Logger) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := runMigrations(cfg.DSN, log); err != nil {
		return nil, fmt.Errorf("postgres: migrations: %w", err)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

// runMigrations uses a short-lived database/sql handle via the pgx
// stdlib adapter, separate from the pool serving requests.
func runMigrations(dsn string, log *logrus.Logger) error {
	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("sql open: %w", err)
	}
	defer sqldb.Close()

	driver, err := migratepg.WithInstance(sqldb, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	src, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("no new migrations to apply")
			return nil
		}
		return err
	}
	log.Debug("migrations applied")
	return nil
}

func qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (p *PostgresStore) Get(ctx context.Context, id media.ID) (media.Blob, error) {
	sqlStr, args, err := qb().Select("mimetype", "data").
		From("mediafiles").
		Where(sq.Eq{"id": int64(id)}).
		ToSql()
	if err != nil {
		return media.Blob{}, fmt.Errorf("postgres: build query: %w", err)
	}
	var blob media.Blob
	if err := p.pool.QueryRow(ctx, sqlStr, args...).Scan(&blob.Mimetype, &blob.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return media.Blob{}, media.ErrNotFound
		}
		return media.Blob{}, fmt.Errorf("postgres: get %d: %w", id, err)
	}
	return blob, nil
}

func (p *PostgresStore) Put(ctx context.Context, id media.ID, blob media.Blob) error {
	sqlStr, args, err := qb().Insert("mediafiles").
		Columns("id", "mimetype", "data").
		Values(int64(id), blob.Mimetype, blob.Data).
		Suffix("ON CONFLICT (id) DO UPDATE SET mimetype = EXCLUDED.mimetype, data = EXCLUDED.data").
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build query: %w", err)
	}
	if _, err := p.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("postgres: put %d: %w", id, err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
