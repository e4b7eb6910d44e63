package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/reviewhub/backend/internal/model"
)

type ReviewEmbeddingRepo interface {
	UpsertReviewEmbedding(ctx context.Context, reviewID int64, content, embedModel string, vector []float32) (int64, error)
	SearchSimilarReviews(ctx context.Context, vector []float32, limit int) ([]model.ReviewMatch, error)
}

type EmbeddingClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

// SearchService embeds review text and answers similarity queries over
// the stored vectors.
type SearchService struct {
	repo   ReviewEmbeddingRepo
	client EmbeddingClient
}

func NewSearchService(repo ReviewEmbeddingRepo, client EmbeddingClient) *SearchService {
	return &SearchService{repo: repo, client: client}
}

func (s *SearchService) IndexReview(ctx context.Context, reviewID int64, title, body string) (string, error) {
	content := strings.TrimSpace(title + "\n" + body)
	if content == "" {
		return "", fmt.Errorf("review text is empty")
	}
	vector, embedModel, err := s.client.EmbedText(ctx, content)
	if err != nil {
		return embedModel, err
	}
	_, err = s.repo.UpsertReviewEmbedding(ctx, reviewID, content, embedModel, vector)
	return embedModel, err
}

func (s *SearchService) SearchReviews(ctx context.Context, query string, limit int) (model.Payload, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	vector, _, err := s.client.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.repo.SearchSimilarReviews(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	results := make([]any, 0, len(matches))
	for _, m := range matches {
		results = append(results, model.Payload{
			"review": model.Payload{
				"identifier": m.ReviewID,
				"rating":     m.Rating,
				"title":      m.Title,
			},
			"item": model.Payload{
				"identifier": m.ItemID,
				"name":       m.ItemName,
			},
			"distance": m.Distance,
		})
	}
	return model.Payload{"results": results}, nil
}
