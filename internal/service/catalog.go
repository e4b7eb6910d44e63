package service

import (
	"context"
	"maps"
	"strings"

	"github.com/reviewhub/backend/internal/db"
	"github.com/reviewhub/backend/internal/model"
)

type CatalogRepo interface {
	CreateItem(ctx context.Context, ownerID int64, name, category, description string, tags []string) (*model.Item, error)
	GetItemByID(ctx context.Context, itemID int64) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	UpdateItem(ctx context.Context, itemID int64, name, category, description string) error
	DeleteItem(ctx context.Context, itemID int64) error
	GetItemTags(ctx context.Context, itemID int64) ([]model.Tag, error)
	CreateReview(ctx context.Context, itemID, authorID int64, rating int, title, body string) (*model.Review, error)
	GetReviewByID(ctx context.Context, reviewID int64) (*model.Review, error)
	ListReviewsByItem(ctx context.Context, itemID int64) ([]model.Review, error)
	UpdateReview(ctx context.Context, reviewID int64, rating int, title, body string) error
	DeleteReview(ctx context.Context, reviewID int64) error
	GetUserSummary(ctx context.Context, userID int64) (*model.UserSummary, error)
}

// CatalogService is thin CRUD orchestration. Responses are assembled as
// untyped payload trees through stages that clone and extend, never
// mutate, so the boundary codec can walk the finished tree.
type CatalogService struct {
	repo CatalogRepo
}

func NewCatalogService(repo CatalogRepo) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ListItems(ctx context.Context) (model.Payload, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]any, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, itemPayload(&item))
	}
	return model.Payload{"items": summaries}, nil
}

func (s *CatalogService) GetItem(ctx context.Context, itemID int64) (model.Payload, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p := itemPayload(item)
	if p, err = s.withOwner(ctx, p, item.OwnerID); err != nil {
		return nil, err
	}
	if p, err = s.withTags(ctx, p, item.ID); err != nil {
		return nil, err
	}
	if p, err = s.withReviews(ctx, p, item.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) CreateItem(ctx context.Context, ownerID int64, req model.CreateItemRequest) (model.Payload, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidInput
	}

	item, err := s.repo.CreateItem(ctx, ownerID, req.Name, req.Category, req.Description, req.Tags)
	if err != nil {
		return nil, err
	}

	p := itemPayload(item)
	if p, err = s.withOwner(ctx, p, item.OwnerID); err != nil {
		return nil, err
	}
	return s.withTags(ctx, p, item.ID)
}

// UpdateItem takes the decoded inbound payload; absent fields keep
// their stored values. Only the owner may update.
func (s *CatalogService) UpdateItem(ctx context.Context, itemID, actorID int64, fields model.Payload) (model.Payload, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if item.OwnerID != actorID {
		return nil, ErrForbidden
	}

	name := stringField(fields, "name", item.Name)
	category := stringField(fields, "category", item.Category)
	description := stringField(fields, "description", item.Description)
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidInput
	}

	if err := s.repo.UpdateItem(ctx, itemID, name, category, description); err != nil {
		return nil, err
	}
	return s.GetItem(ctx, itemID)
}

func (s *CatalogService) DeleteItem(ctx context.Context, itemID, actorID int64) error {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	if item.OwnerID != actorID {
		return ErrForbidden
	}
	return s.repo.DeleteItem(ctx, itemID)
}

func (s *CatalogService) CreateReview(ctx context.Context, itemID, authorID int64, req model.CreateReviewRequest) (model.Payload, *model.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, nil, ErrInvalidInput
	}

	if _, err := s.repo.GetItemByID(ctx, itemID); err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	review, err := s.repo.CreateReview(ctx, itemID, authorID, req.Rating, req.Title, req.Body)
	if err != nil {
		return nil, nil, err
	}

	p, err := s.withAuthor(ctx, reviewPayload(review), review.AuthorID)
	if err != nil {
		return nil, nil, err
	}
	return p, review, nil
}

func (s *CatalogService) GetReview(ctx context.Context, reviewID int64) (model.Payload, error) {
	review, err := s.repo.GetReviewByID(ctx, reviewID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p, err := s.withAuthor(ctx, reviewPayload(review), review.AuthorID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetItemByID(ctx, review.ItemID)
	if err != nil {
		return nil, err
	}
	out := maps.Clone(p)
	out["item"] = itemPayload(item)
	return out, nil
}

func (s *CatalogService) UpdateReview(ctx context.Context, reviewID, actorID int64, req model.CreateReviewRequest) (model.Payload, error) {
	review, err := s.repo.GetReviewByID(ctx, reviewID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if review.AuthorID != actorID {
		return nil, ErrForbidden
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidInput
	}

	if err := s.repo.UpdateReview(ctx, reviewID, req.Rating, req.Title, req.Body); err != nil {
		return nil, err
	}
	return s.GetReview(ctx, reviewID)
}

func (s *CatalogService) DeleteReview(ctx context.Context, reviewID, actorID int64) error {
	review, err := s.repo.GetReviewByID(ctx, reviewID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	if review.AuthorID != actorID {
		return ErrForbidden
	}
	return s.repo.DeleteReview(ctx, reviewID)
}

// --- payload stages ---

func itemPayload(item *model.Item) model.Payload {
	return model.Payload{
		"identifier":  item.ID,
		"name":        item.Name,
		"category":    item.Category,
		"description": item.Description,
		"createdAt":   item.CreatedAt,
	}
}

func reviewPayload(review *model.Review) model.Payload {
	return model.Payload{
		"identifier": review.ID,
		"rating":     review.Rating,
		"title":      review.Title,
		"body":       review.Body,
		"createdAt":  review.CreatedAt,
	}
}

func userPayload(user *model.UserSummary) model.Payload {
	return model.Payload{
		"identifier": user.ID,
		"name":       user.DisplayName,
	}
}

func (s *CatalogService) withOwner(ctx context.Context, p model.Payload, ownerID int64) (model.Payload, error) {
	owner, err := s.repo.GetUserSummary(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := maps.Clone(p)
	out["owner"] = userPayload(owner)
	return out, nil
}

func (s *CatalogService) withAuthor(ctx context.Context, p model.Payload, authorID int64) (model.Payload, error) {
	author, err := s.repo.GetUserSummary(ctx, authorID)
	if err != nil {
		return nil, err
	}
	out := maps.Clone(p)
	out["author"] = userPayload(author)
	return out, nil
}

func (s *CatalogService) withTags(ctx context.Context, p model.Payload, itemID int64) (model.Payload, error) {
	tags, err := s.repo.GetItemTags(ctx, itemID)
	if err != nil {
		return nil, err
	}
	list := make([]any, 0, len(tags))
	for _, tag := range tags {
		list = append(list, model.Payload{"identifier": tag.ID, "name": tag.Name})
	}
	out := maps.Clone(p)
	out["tags"] = list
	return out, nil
}

func (s *CatalogService) withReviews(ctx context.Context, p model.Payload, itemID int64) (model.Payload, error) {
	reviews, err := s.repo.ListReviewsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	list := make([]any, 0, len(reviews))
	for _, review := range reviews {
		entry, err := s.withAuthor(ctx, reviewPayload(&review), review.AuthorID)
		if err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	out := maps.Clone(p)
	out["reviews"] = list
	return out, nil
}

func stringField(p model.Payload, key, fallback string) string {
	if val, ok := p[key].(string); ok {
		return val
	}
	return fallback
}
