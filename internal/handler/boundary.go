package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/opaque"
	"github.com/reviewhub/backend/internal/service"
)

// Boundary is the choke point where identifiers cross the wire: every
// inbound payload and path parameter is decoded here, every outbound
// payload is encoded here. Handlers never touch raw identifiers in
// responses directly.
type Boundary struct {
	codec *opaque.Codec
}

func NewBoundary(codec *opaque.Codec) *Boundary {
	return &Boundary{codec: codec}
}

// BindPayload binds the JSON body into an untyped payload tree and
// decodes every opaque identifier in it. A malformed identifier is
// reported as not-found: the value may be stale or forged, never a
// server fault.
func (b *Boundary) BindPayload(c *gin.Context) (model.Payload, error) {
	var raw model.Payload
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, service.ErrInvalidInput
	}

	decoded, err := b.codec.DecodePayload(raw)
	if err != nil {
		return nil, service.ErrNotFound
	}

	payload, ok := decoded.(model.Payload)
	if !ok {
		return nil, service.ErrInvalidInput
	}
	return payload, nil
}

// PathID decodes an opaque identifier path parameter. The decoded
// value is untrusted until the repository confirms it exists.
func (b *Boundary) PathID(c *gin.Context, name string) (int64, error) {
	id, err := b.codec.DecodeID(c.Param(name))
	if err != nil {
		return 0, service.ErrNotFound
	}
	return id, nil
}

// EncodeID exposes single-identifier encoding for non-payload spots
// (claims, redirects).
func (b *Boundary) EncodeID(id int64) string {
	return b.codec.EncodeID(id)
}

// JSON encodes every internal identifier in the payload and writes it.
func (b *Boundary) JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, b.codec.EncodePayload(payload))
}
