package model

import "time"

// ============================================================================
// Catalog 모델 (아이템 / 리뷰 / 태그)
// ============================================================================

type Item struct {
	ID          int64
	OwnerID     int64
	Name        string
	Category    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Review struct {
	ID        int64
	ItemID    int64
	AuthorID  int64
	Rating    int
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Tag struct {
	ID   int64
	Name string
}

// ReviewMatch - 벡터 검색 결과 한 건 (리뷰 + 소속 아이템 + 거리)
type ReviewMatch struct {
	ReviewID int64
	ItemID   int64
	ItemName string
	Rating   int
	Title    string
	Distance float64
}

// CreateItemRequest - 아이템 등록 요청
type CreateItemRequest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CreateReviewRequest - 리뷰 등록 요청
type CreateReviewRequest struct {
	Rating int    `json:"rating"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}
