package db

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/reviewhub/backend/internal/model"
)

func (db *Postgres) EnsureEmbeddingSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`
		CREATE TABLE IF NOT EXISTS review_embeddings (
			id BIGSERIAL PRIMARY KEY,
			review_id BIGINT NOT NULL UNIQUE REFERENCES reviews(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding vector(768) NOT NULL,
			model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) UpsertReviewEmbedding(ctx context.Context, reviewID int64, content, embedModel string, vector []float32) (int64, error) {
	query := `
		INSERT INTO review_embeddings (review_id, content, embedding, model)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (review_id) DO UPDATE
		SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, model = EXCLUDED.model
		RETURNING id
	`
	var id int64
	err := db.Pool.QueryRow(ctx, query, reviewID, content, pgvector.NewVector(vector), embedModel).Scan(&id)
	return id, err
}

func (db *Postgres) SearchSimilarReviews(ctx context.Context, vector []float32, limit int) ([]model.ReviewMatch, error) {
	query := `
		SELECT r.id, r.item_id, i.name, r.rating, r.title, re.embedding <=> $1 AS distance
		FROM review_embeddings re
		JOIN reviews r ON r.id = re.review_id
		JOIN items i ON i.id = r.item_id
		ORDER BY distance
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.ReviewMatch
	for rows.Next() {
		var m model.ReviewMatch
		if err := rows.Scan(&m.ReviewID, &m.ItemID, &m.ItemName, &m.Rating, &m.Title, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if matches == nil {
		matches = []model.ReviewMatch{}
	}
	return matches, rows.Err()
}
