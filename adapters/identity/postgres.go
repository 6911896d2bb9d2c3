package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

const identityColumns = `id, address, nonce, role, active, created_at, updated_at, last_login_at`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

var _ ports.IdentityStore = (*PostgresStore)(nil)

func (r *PostgresStore) Close() {
	r.pool.Close()
}

func (r *PostgresStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE address = $1`
	return r.queryOne(ctx, query, address)
}

func (r *PostgresStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ports.ErrIdentityNotFound
	}
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresStore) Create(ctx context.Context, address, nonce string) (*core.Identity, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity ID: %w", err)
	}

	query := `
		INSERT INTO identities (id, address, nonce, role, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING ` + identityColumns

	identity, err := r.queryOne(ctx, query, id.String(), address, nonce, string(core.RoleUser))
	if err != nil {
		// Check for unique constraint violation (23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ports.ErrIdentityExists
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return identity, nil
}

func (r *PostgresStore) RotateNonce(ctx context.Context, id, nonce string) (*core.Identity, error) {
	query := `
		UPDATE identities SET nonce = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + identityColumns

	return r.queryOne(ctx, query, id, nonce)
}

// ConsumeNonce swaps the nonce only if it still holds the expected value, in
// a single statement.
func (r *PostgresStore) ConsumeNonce(ctx context.Context, id, expected, next string) error {
	query := `
		UPDATE identities
		SET nonce = $3, last_login_at = now(), updated_at = now()
		WHERE id = $1 AND nonce = $2`

	tag, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNonceMismatch
	}

	return nil
}

func (r *PostgresStore) SetActive(ctx context.Context, id string, active bool) (*core.Identity, error) {
	query := `
		UPDATE identities SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + identityColumns

	return r.queryOne(ctx, query, id, active)
}

func (r *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*core.Identity, error) {
	var (
		identity core.Identity
		role     string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&identity.ID, &identity.Address, &identity.Nonce, &role, &identity.Active,
		&identity.CreatedAt, &identity.UpdatedAt, &identity.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrIdentityNotFound
		}
		return nil, err
	}
	identity.Role = core.Role(role)

	return &identity, nil
}
