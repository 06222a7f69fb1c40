package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/inventory"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles aggregate inventory endpoints.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
	ledgers *ledger.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service, ledgers *ledger.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
		ledgers:     ledgers,
	}
}

// RegisterRoutes registers inventory endpoints.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/reorder-report", h.ReorderReport)
	rg.GET("/:productId", h.GetByProduct)
	rg.GET("/:productId/ledgers", h.ListLedgers)
	rg.PUT("/:productId/reorder-point", h.SetReorderPoint)
}

// GetByProduct returns the aggregate totals for one product.
// GET /api/v1/inventory/:productId
func (h *InventoryHandler) GetByProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	agg, err := h.service.GetByProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAggregate(agg))
}

// ListLedgers returns the per-batch breakdown behind a product's aggregate.
// GET /api/v1/inventory/:productId/ledgers
func (h *InventoryHandler) ListLedgers(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	ledgers, err := h.ledgers.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items: dto.FromLedgers(ledgers),
		Count: len(ledgers),
	})
}

// List returns aggregates for browsing.
// GET /api/v1/inventory?limit=&offset=
func (h *InventoryHandler) List(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)
	offset := h.ParseIntQuery(c, "offset", 0)

	aggregates, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:  dto.FromAggregates(aggregates),
		Count:  len(aggregates),
		Limit:  limit,
		Offset: offset,
	})
}

// SetReorderPoint updates a product's replenishment threshold.
// PUT /api/v1/inventory/:productId/reorder-point
func (h *InventoryHandler) SetReorderPoint(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	var req dto.SetReorderPointRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.service.SetReorderPoint(c.Request.Context(), productID, types.NewQuantityFromFloat64(req.ReorderPoint))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "reorder point updated")
}

// ReorderReport lists products whose available stock fell to the threshold.
// GET /api/v1/inventory/reorder-report
func (h *InventoryHandler) ReorderReport(c *gin.Context) {
	aggregates, err := h.service.ListNeedingReorder(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items: dto.FromAggregates(aggregates),
		Count: len(aggregates),
	})
}
