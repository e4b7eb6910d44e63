package db

import (
	"context"

	"github.com/reviewhub/backend/internal/model"
)

func (db *Postgres) EnsureCatalogSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS reviews (
			id BIGSERIAL PRIMARY KEY,
			item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			author_id BIGINT NOT NULL REFERENCES users(id),
			rating INT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS tags (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS item_tags (
			item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (item_id, tag_id)
		)
		`,
		`CREATE INDEX IF NOT EXISTS reviews_item_id_idx ON reviews(item_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateItem(ctx context.Context, ownerID int64, name, category, description string, tags []string) (*model.Item, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO items (owner_id, name, category, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, owner_id, name, category, description, created_at, updated_at
	`
	var item model.Item
	err = tx.QueryRow(ctx, query, ownerID, name, category, description).Scan(
		&item.ID,
		&item.OwnerID,
		&item.Name,
		&item.Category,
		&item.Description,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, tag := range tags {
		var tagID int64
		if err = tx.QueryRow(ctx, `
			INSERT INTO tags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, tag).Scan(&tagID); err != nil {
			return nil, err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO item_tags (item_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, item.ID, tagID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *Postgres) GetItemByID(ctx context.Context, itemID int64) (*model.Item, error) {
	query := `
		SELECT id, owner_id, name, category, description, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	var item model.Item
	err := db.Pool.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.OwnerID,
		&item.Name,
		&item.Category,
		&item.Description,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *Postgres) ListItems(ctx context.Context) ([]model.Item, error) {
	query := `
		SELECT id, owner_id, name, category, description, created_at, updated_at
		FROM items
		ORDER BY created_at DESC
	`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.Name,
			&item.Category,
			&item.Description,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	if list == nil {
		list = []model.Item{}
	}
	return list, rows.Err()
}

func (db *Postgres) UpdateItem(ctx context.Context, itemID int64, name, category, description string) error {
	query := `
		UPDATE items
		SET name = $2, category = $3, description = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, itemID, name, category, description)
	return err
}

func (db *Postgres) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	return err
}

func (db *Postgres) GetItemTags(ctx context.Context, itemID int64) ([]model.Tag, error) {
	query := `
		SELECT t.id, t.name
		FROM tags t
		JOIN item_tags it ON it.tag_id = t.id
		WHERE it.item_id = $1
		ORDER BY t.name
	`
	rows, err := db.Pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	return tags, rows.Err()
}

func (db *Postgres) CreateReview(ctx context.Context, itemID, authorID int64, rating int, title, body string) (*model.Review, error) {
	query := `
		INSERT INTO reviews (item_id, author_id, rating, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, item_id, author_id, rating, title, body, created_at, updated_at
	`
	var review model.Review
	err := db.Pool.QueryRow(ctx, query, itemID, authorID, rating, title, body).Scan(
		&review.ID,
		&review.ItemID,
		&review.AuthorID,
		&review.Rating,
		&review.Title,
		&review.Body,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (db *Postgres) GetReviewByID(ctx context.Context, reviewID int64) (*model.Review, error) {
	query := `
		SELECT id, item_id, author_id, rating, title, body, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`
	var review model.Review
	err := db.Pool.QueryRow(ctx, query, reviewID).Scan(
		&review.ID,
		&review.ItemID,
		&review.AuthorID,
		&review.Rating,
		&review.Title,
		&review.Body,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (db *Postgres) ListReviewsByItem(ctx context.Context, itemID int64) ([]model.Review, error) {
	query := `
		SELECT id, item_id, author_id, rating, title, body, created_at, updated_at
		FROM reviews
		WHERE item_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.Pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Review
	for rows.Next() {
		var review model.Review
		if err := rows.Scan(
			&review.ID,
			&review.ItemID,
			&review.AuthorID,
			&review.Rating,
			&review.Title,
			&review.Body,
			&review.CreatedAt,
			&review.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, review)
	}
	if list == nil {
		list = []model.Review{}
	}
	return list, rows.Err()
}

func (db *Postgres) UpdateReview(ctx context.Context, reviewID int64, rating int, title, body string) error {
	query := `
		UPDATE reviews
		SET rating = $2, title = $3, body = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, reviewID, rating, title, body)
	return err
}

func (db *Postgres) DeleteReview(ctx context.Context, reviewID int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, reviewID)
	return err
}
