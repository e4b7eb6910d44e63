package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reviewhub/backend/internal/service"
)

type SearchHandler struct {
	svc      *service.SearchService
	boundary *Boundary
}

func NewSearchHandler(svc *service.SearchService, boundary *Boundary) *SearchHandler {
	return &SearchHandler{svc: svc, boundary: boundary}
}

// SearchReviews godoc
// @Summary Find reviews similar to a free-text query
// @Tags search
// @Produce json
// @Security BearerAuth
// @Param q query string true "Query text"
// @Param limit query int false "Max results (default 10)"
// @Success 200 {object} model.Payload
// @Failure 400 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/search/reviews [get]
func (h *SearchHandler) SearchReviews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	payload, err := h.svc.SearchReviews(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	h.boundary.JSON(c, http.StatusOK, payload)
}
