package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/service"
)

type CatalogHandler struct {
	svc      *service.CatalogService
	search   *service.SearchService
	boundary *Boundary
}

// NewCatalogHandler - search는 임베딩 설정이 없으면 nil로 전달됩니다.
func NewCatalogHandler(svc *service.CatalogService, search *service.SearchService, boundary *Boundary) *CatalogHandler {
	return &CatalogHandler{svc: svc, search: search, boundary: boundary}
}

// ListItems godoc
// @Summary List catalog items
// @Tags items
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Payload
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/items [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	payload, err := h.svc.ListItems(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusOK, payload)
}

// GetItem godoc
// @Summary Get item detail with owner, tags and reviews
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque item identifier"
// @Success 200 {object} model.Payload
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/items/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	itemID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	payload, err := h.svc.GetItem(c.Request.Context(), itemID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusOK, payload)
}

// CreateItem godoc
// @Summary Create a catalog item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateItemRequest true "Item fields"
// @Success 201 {object} model.Payload
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/items [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req model.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	payload, err := h.svc.CreateItem(c.Request.Context(), user.ID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusCreated, payload)
}

// UpdateItem godoc
// @Summary Update an item
// @Description Body is an untyped payload; any opaque identifiers in
// @Description it are decoded at the boundary before processing.
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque item identifier"
// @Param request body model.Payload true "Fields to update"
// @Success 200 {object} model.Payload
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/items/{id} [put]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	itemID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	fields, err := h.boundary.BindPayload(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	payload, err := h.svc.UpdateItem(c.Request.Context(), itemID, user.ID, fields)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusOK, payload)
}

// DeleteItem godoc
// @Summary Delete an item
// @Tags items
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque item identifier"
// @Success 200 {object} model.StatusResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/items/{id} [delete]
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	itemID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if err := h.svc.DeleteItem(c.Request.Context(), itemID, user.ID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "deleted"})
}

// CreateReview godoc
// @Summary Review an item
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque item identifier"
// @Param request body model.CreateReviewRequest true "Review fields"
// @Success 201 {object} model.Payload
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/items/{id}/reviews [post]
func (h *CatalogHandler) CreateReview(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	itemID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var req model.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	payload, review, err := h.svc.CreateReview(c.Request.Context(), itemID, user.ID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// 임베딩 인덱싱은 best effort - 실패해도 리뷰 생성은 성공으로 처리
	if h.search != nil {
		if _, err := h.search.IndexReview(c.Request.Context(), review.ID, review.Title, review.Body); err != nil {
			slog.Warn("review embedding failed", "reviewId", review.ID, "error", err)
		}
	}

	h.boundary.JSON(c, http.StatusCreated, payload)
}

// GetReview godoc
// @Summary Get a review with its item and author
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque review identifier"
// @Success 200 {object} model.Payload
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/reviews/{id} [get]
func (h *CatalogHandler) GetReview(c *gin.Context) {
	reviewID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	payload, err := h.svc.GetReview(c.Request.Context(), reviewID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusOK, payload)
}

// UpdateReview godoc
// @Summary Update own review
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque review identifier"
// @Param request body model.CreateReviewRequest true "Review fields"
// @Success 200 {object} model.Payload
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/reviews/{id} [put]
func (h *CatalogHandler) UpdateReview(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	reviewID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	var req model.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	payload, err := h.svc.UpdateReview(c.Request.Context(), reviewID, user.ID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusOK, payload)
}

// DeleteReview godoc
// @Summary Delete own review
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param id path string true "Opaque review identifier"
// @Success 200 {object} model.StatusResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/reviews/{id} [delete]
func (h *CatalogHandler) DeleteReview(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	reviewID, err := h.boundary.PathID(c, "id")
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if err := h.svc.DeleteReview(c.Request.Context(), reviewID, user.ID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "deleted"})
}
