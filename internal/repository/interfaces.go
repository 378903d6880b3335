package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by repositories; pgxmock satisfies it too
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IdentityRepositoryInterface defines operations for gallery data access
type IdentityRepositoryInterface interface {
	FetchAllWithEmbedding(ctx context.Context) ([]StoredEmbedding, error)
	Insert(ctx context.Context, identity *domain.Identity, raw []byte) error
	GetByLabel(ctx context.Context, label string) (*domain.Identity, error)
	Delete(ctx context.Context, label string) error
	Count(ctx context.Context) (int, error)
	NearestInStore(ctx context.Context, query []float32, limit int) ([]domain.Candidate, error)
}
