package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// StoredEmbedding is one gallery row as persisted: the label and the raw
// little-endian float32 bytes, still undecoded.
type StoredEmbedding struct {
	ID    uuid.UUID
	Label string
	Raw   []byte
}

// VectorDimension is the width of the embedding_vec column. Embeddings of any
// other length are stored in embedding only and embedding_vec stays NULL.
const VectorDimension = 512

type IdentityRepository struct {
	pool PgxPool
}

var _ IdentityRepositoryInterface = (*IdentityRepository)(nil)

func NewIdentityRepository(pool PgxPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// FetchAllWithEmbedding returns every identity with an embedding in insertion order
func (r *IdentityRepository) FetchAllWithEmbedding(ctx context.Context) ([]StoredEmbedding, error) {
	query := `
		SELECT id, label, embedding
		FROM identities
		WHERE embedding IS NOT NULL
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch embeddings: %w", err)
	}
	defer rows.Close()

	var out []StoredEmbedding
	for rows.Next() {
		var s StoredEmbedding
		if err := rows.Scan(&s.ID, &s.Label, &s.Raw); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return out, nil
}

// Insert persists a new identity. raw is the canonical encoding of identity.Embedding;
// the vector column mirrors it for server-side similarity queries.
func (r *IdentityRepository) Insert(ctx context.Context, identity *domain.Identity, raw []byte) error {
	query := `
		INSERT INTO identities (id, label, metadata, embedding, embedding_vec, photo_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}

	var vec *pgvector.Vector
	if len(identity.Embedding) == VectorDimension {
		v := pgvector.NewVector(identity.Embedding)
		vec = &v
	}

	metadata := identity.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Label,
		metadata,
		raw,
		vec,
		identity.PhotoCount,
	).Scan(&identity.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateLabel.WithError(fmt.Errorf("label %q", identity.Label))
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

func (r *IdentityRepository) GetByLabel(ctx context.Context, label string) (*domain.Identity, error) {
	query := `
		SELECT id, label, metadata, embedding_vec, photo_count, created_at
		FROM identities
		WHERE label = $1
	`

	var identity domain.Identity
	var vec *pgvector.Vector

	err := r.pool.QueryRow(ctx, query, label).Scan(
		&identity.ID,
		&identity.Label,
		&identity.Metadata,
		&vec,
		&identity.PhotoCount,
		&identity.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by label: %w", err)
	}

	if vec != nil {
		identity.Embedding = vec.Slice()
	}

	return &identity, nil
}

func (r *IdentityRepository) Delete(ctx context.Context, label string) error {
	query := `
		DELETE FROM identities
		WHERE label = $1
	`

	result, err := r.pool.Exec(ctx, query, label)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}

	return nil
}

func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM identities`

	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}

	return count, nil
}

// NearestInStore ranks stored identities by cosine similarity using pgvector.
// It reads the database directly and is independent of the in-memory index.
func (r *IdentityRepository) NearestInStore(ctx context.Context, query []float32, limit int) ([]domain.Candidate, error) {
	sql := `
		SELECT label, 1 - (embedding_vec <=> $1) AS similarity
		FROM identities
		WHERE embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> $1
		LIMIT $2
	`

	// no row can carry a mirror of another width
	if len(query) != VectorDimension {
		return []domain.Candidate{}, nil
	}

	rows, err := r.pool.Query(ctx, sql, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("nearest in store: %w", err)
	}
	defer rows.Close()

	candidates := make([]domain.Candidate, 0, limit)
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.Label, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	return candidates, nil
}
