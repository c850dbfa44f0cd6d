package vecindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/sceneseek/sceneseek/internal/models"
)

// Postgres is the pgvector-backed Index.
type Postgres struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPostgres connects to the configured database and verifies the
// connection. An unreachable database fails with models.ErrIndexUnavailable.
func NewPostgres(ctx context.Context, config Config) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString(config))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	return &Postgres{pool: pool, dim: config.Dimension}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Dimension() int {
	return p.dim
}

// Upsert writes one embedding, overwriting any prior entry under the same
// key. Same-key writes resolve last-write-wins at the row level.
func (p *Postgres) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) != p.dim {
		return fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			models.ErrInvalidInput, len(rec.Vector), p.dim)
	}

	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO scene_embeddings (key, video_id, scene_index, embedding, tags, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (key) DO UPDATE
         SET embedding = EXCLUDED.embedding,
             tags = EXCLUDED.tags,
             created_at = EXCLUDED.created_at`,
		rec.Key, rec.VideoID, rec.SceneIndex, pgvector.NewVector(rec.Vector), tags, time.Now())
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", models.ErrIndexUnavailable, rec.Key, err)
	}
	return nil
}

// Delete removes the entry under key, if any.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM scene_embeddings WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", models.ErrIndexUnavailable, key, err)
	}
	return nil
}

// Query returns the k nearest entries by cosine similarity. The secondary
// sort on (video_id, scene_index) keeps equal-distance results in a
// deterministic order.
func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != p.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			models.ErrInvalidInput, len(vector), p.dim)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT key, video_id, scene_index, tags,
                1 - (embedding <=> $1) AS score
         FROM scene_embeddings
         ORDER BY embedding <=> $1, video_id, scene_index
         LIMIT $2`,
		pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", models.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		var tags []byte
		if err := rows.Scan(&m.Key, &m.VideoID, &m.SceneIndex, &tags, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &m.Tags); err != nil {
				return nil, fmt.Errorf("unmarshaling tags for %s: %w", m.Key, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// InitSchema creates the pgvector extension, the embeddings table and its
// indexes. Run once before first use; the embedding column dimension is
// fixed at creation and must match the model's.
func InitSchema(ctx context.Context, config Config) error {
	conn, err := pgx.Connect(ctx, connString(config))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS scene_embeddings (
            key VARCHAR(255) PRIMARY KEY,
            video_id VARCHAR(255) NOT NULL,
            scene_index INTEGER NOT NULL,
            embedding vector(%d) NOT NULL,
            tags JSONB,
            created_at TIMESTAMPTZ NOT NULL
        )`, config.Dimension))
	if err != nil {
		return fmt.Errorf("creating scene_embeddings table: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_scene_embeddings_video ON scene_embeddings(video_id, scene_index);
        CREATE INDEX IF NOT EXISTS idx_scene_embeddings_vector ON scene_embeddings
            USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	return nil
}

func connString(config Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.DBName,
	)
}
