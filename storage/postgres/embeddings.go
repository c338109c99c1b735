package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/facepay/facepay/internal/types"
)

const EMBEDDINGS_TABLE = "face_embeddings"

func (p *PostgresBackend) SaveEmbedding(ctx context.Context, name string, embedding []float64) (int64, error) {
	buf, err := json.Marshal(embedding)
	if err != nil {
		return 0, fmt.Errorf("fail to serialize embedding to json, err: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (name, embedding) VALUES ($1, $2) RETURNING id;`, EMBEDDINGS_TABLE)

	var id int64
	if err := p.pool.QueryRow(ctx, query, name, string(buf)).Scan(&id); err != nil {
		return 0, fmt.Errorf("fail to insert embedding, err: %w", err)
	}
	return id, nil
}

type embeddingRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Embedding string `db:"embedding"`
}

func (p *PostgresBackend) ListEmbeddings(ctx context.Context) ([]types.FaceEmbedding, error) {
	query := fmt.Sprintf(`SELECT id, name, embedding FROM %s;`, EMBEDDINGS_TABLE)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[embeddingRow])
	if err != nil {
		return nil, err
	}

	out := make([]types.FaceEmbedding, 0, len(collected))
	for _, row := range collected {
		var emb []float64
		if err := json.Unmarshal([]byte(row.Embedding), &emb); err != nil {
			return nil, fmt.Errorf("fail to deserialize embedding %d, err: %w", row.ID, err)
		}
		out = append(out, types.FaceEmbedding{
			ID:        row.ID,
			Name:      row.Name,
			Embedding: emb,
		})
	}
	return out, nil
}

func (p *PostgresBackend) ListSubjects(ctx context.Context) ([]types.FaceEmbedding, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY created_at DESC;`, EMBEDDINGS_TABLE)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.FaceEmbedding])
}
