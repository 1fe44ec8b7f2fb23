package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wuwenbin0122/wellbeing-chat/internal/auth"
	"github.com/wuwenbin0122/wellbeing-chat/internal/models"
	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	stmt := strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS users (",
		"    id TEXT PRIMARY KEY,",
		"    email TEXT NOT NULL UNIQUE,",
		"    name TEXT NOT NULL,",
		"    password_hash TEXT NOT NULL,",
		"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		")",
	}, "\n")

	if _, err := p.Pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}

	return nil
}

// PostgresUserStore keeps users in the relational "users" table.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(p *Postgres) *PostgresUserStore {
	return &PostgresUserStore{pool: p.Pool}
}

func (s *PostgresUserStore) InsertUser(ctx context.Context, user models.User) error {
	const query = `INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return auth.ErrDuplicateEmail
		}
		return fmt.Errorf("postgres: insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`

	var user models.User
	if err := s.pool.QueryRow(ctx, query, email).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
