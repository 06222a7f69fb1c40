package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/location"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// LocationHandler handles storage location endpoints.
type LocationHandler struct {
	*BaseHandler
	service *location.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service) *LocationHandler {
	return &LocationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// RegisterRoutes registers location endpoints.
func (h *LocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/deactivate", h.Deactivate)
	rg.DELETE("/:id", h.Delete)
}

// Create registers a storage slot.
// POST /api/v1/locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l := location.New(req.Code, req.Name, types.NewQuantityFromFloat64(req.MaxCapacity))
	if err := h.service.Create(c.Request.Context(), l); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, l.ID.String())
}

// GetByID returns one location.
// GET /api/v1/locations/:id
func (h *LocationHandler) GetByID(c *gin.Context) {
	locationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLocation(l))
}

// List returns locations.
// GET /api/v1/locations?activeOnly=true
func (h *LocationHandler) List(c *gin.Context) {
	activeOnly := c.Query("activeOnly") == "true"

	locations, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items: dto.FromLocations(locations),
		Count: len(locations),
	})
}

// Deactivate marks a location inactive. Fails while stock is assigned there.
// POST /api/v1/locations/:id/deactivate
func (h *LocationHandler) Deactivate(c *gin.Context) {
	locationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), locationID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "location deactivated")
}

// Delete removes an empty location.
// DELETE /api/v1/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	locationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), locationID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
