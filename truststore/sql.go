package truststore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQL keeps trust records in the whitelisted_devices table. The statements
// are written for Postgres and stay within the subset SQLite also accepts.
type SQL struct {
	db      *sql.DB
	dialect goose.Dialect
	nowF    func() time.Time
}

// SQLConfig configures a SQL store. The zero value targets Postgres and the
// system clock.
type SQLConfig struct {
	Dialect goose.Dialect
	Now     func() time.Time
}

// NewSQL wraps an open database handle.
func NewSQL(db *sql.DB, cfg SQLConfig) *SQL {
	if cfg.Dialect == "" {
		cfg.Dialect = goose.DialectPostgres
	}
	return &SQL{db: db, dialect: cfg.Dialect, nowF: nowOrDefault(cfg.Now)}
}

// OpenPostgres connects through the pgx database/sql driver and pings the
// server. The caller owns the returned handle.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func (s *SQL) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(s.dialect, s.db, fsys, goose.WithDisableGlobalRegistry(true))
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQL) IsTrusted(ctx context.Context, ref identity.Ref) (bool, error) {
	_, ok, err := s.Record(ctx, ref)
	return ok, err
}

// Whitelist inserts ref. An existing row is left untouched so the first
// timestamp is kept.
func (s *SQL) Whitelist(ctx context.Context, ref identity.Ref) error {
	query :=
		`INSERT INTO whitelisted_devices (identity_key, channel, address, whitelisted_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_key) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, ref.Key(), ref.Channel.String(), ref.Address, s.nowF().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQL) Revoke(ctx context.Context, ref identity.Ref) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM whitelisted_devices WHERE identity_key = $1`, ref.Key())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Record returns the whitelist entry for ref.
func (s *SQL) Record(ctx context.Context, ref identity.Ref) (Record, bool, error) {
	query :=
		`SELECT whitelisted_at FROM whitelisted_devices
		 WHERE identity_key = $1`

	var at time.Time
	err := s.db.QueryRowContext(ctx, query, ref.Key()).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Record{Identity: ref, WhitelistedAt: at}, true, nil
}
