package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// StockHandler handles per-batch ledger operations.
type StockHandler struct {
	*BaseHandler
	ledgers *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, ledgers *ledger.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		ledgers:     ledgers,
	}
}

// RegisterRoutes registers stock operation endpoints under /batches/:id/stock.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetLedger)
	rg.POST("/receive", h.Receive)
	rg.POST("/move-to-shelf", h.MoveToShelf)
	rg.POST("/move-to-warehouse", h.MoveToWarehouse)
	rg.POST("/reserve", h.Reserve)
	rg.POST("/release", h.Release)
	rg.POST("/complete-delivery", h.CompleteDelivery)
	rg.POST("/adjust", h.Adjust)
	rg.PUT("/location", h.AssignLocation)
	rg.DELETE("/location", h.ClearLocation)
}

// GetLedger returns the ledger counters for a batch.
// GET /api/v1/batches/:id/stock
func (h *StockHandler) GetLedger(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	l, err := h.ledgers.GetByBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLedger(l))
}

// Receive books delivered stock into the warehouse counter.
// POST /api/v1/batches/:id/stock/receive
func (h *StockHandler) Receive(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReceiveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ref := movement.Reference{}
	if req.PurchaseOrderID != nil {
		poID, err := id.Parse(*req.PurchaseOrderID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid purchaseOrderId").WithDetail("purchaseOrderId", *req.PurchaseOrderID))
			return
		}
		ref = movement.Reference{Kind: movement.RefPurchaseOrder, ID: poID}
	}

	reason := req.Reason
	if reason == "" {
		reason = "supplier delivery"
	}

	err := h.ledgers.Receive(c.Request.Context(), batchID, types.NewQuantityFromFloat64(req.Quantity), ref, reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// MoveToShelf moves stock from the warehouse onto the storefront shelf.
// POST /api/v1/batches/:id/stock/move-to-shelf
func (h *StockHandler) MoveToShelf(c *gin.Context) {
	h.quantityOp(c, h.ledgers.MoveToShelf)
}

// MoveToWarehouse moves shelf stock back into the warehouse.
// POST /api/v1/batches/:id/stock/move-to-warehouse
func (h *StockHandler) MoveToWarehouse(c *gin.Context) {
	h.quantityOp(c, h.ledgers.MoveToWarehouse)
}

// Reserve commits stock to an unpaid order, shelf first.
// POST /api/v1/batches/:id/stock/reserve
func (h *StockHandler) Reserve(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReserveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	orderID, err := id.Parse(req.OrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid orderId").WithDetail("orderId", req.OrderID))
		return
	}

	ref := movement.Reference{Kind: movement.RefOrder, ID: orderID}
	err = h.ledgers.Reserve(c.Request.Context(), batchID, types.NewQuantityFromFloat64(req.Quantity), ref, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// Release returns reserved stock after a cancelled order.
// POST /api/v1/batches/:id/stock/release
func (h *StockHandler) Release(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReleaseStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	orderID, err := id.Parse(req.OrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid orderId").WithDetail("orderId", req.OrderID))
		return
	}

	ref := movement.Reference{Kind: movement.RefOrder, ID: orderID}
	err = h.ledgers.Release(c.Request.Context(), batchID, types.NewQuantityFromFloat64(req.Quantity), req.ReturnToShelf, ref, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// CompleteDelivery finalizes a reservation after payment success.
// POST /api/v1/batches/:id/stock/complete-delivery
func (h *StockHandler) CompleteDelivery(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CompleteDeliveryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	orderID, err := id.Parse(req.OrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid orderId").WithDetail("orderId", req.OrderID))
		return
	}

	ref := movement.Reference{Kind: movement.RefOrder, ID: orderID}
	err = h.ledgers.CompleteDelivery(c.Request.Context(), batchID, types.NewQuantityFromFloat64(req.Quantity), ref, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// Adjust applies a manual stock correction.
// POST /api/v1/batches/:id/stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.ledgers.Adjust(
		c.Request.Context(),
		batchID,
		types.NewQuantityFromFloat64(req.Quantity),
		ledger.AdjustDirection(req.Direction),
		movement.Reference{},
		req.Reason,
	)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// AssignLocation places the batch in a storage slot.
// PUT /api/v1/batches/:id/stock/location
func (h *StockHandler) AssignLocation(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AssignLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid locationId").WithDetail("locationId", req.LocationID))
		return
	}

	if err := h.ledgers.AssignLocation(c.Request.Context(), batchID, locationID); err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// ClearLocation removes the batch from its storage slot.
// DELETE /api/v1/batches/:id/stock/location
func (h *StockHandler) ClearLocation(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.ledgers.ClearLocation(c.Request.Context(), batchID); err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// quantityOp handles the operations whose request carries only a quantity and
// an optional reason.
func (h *StockHandler) quantityOp(c *gin.Context, op func(ctx context.Context, batchID id.ID, qty types.Quantity, reason string) error) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.QuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := op(c.Request.Context(), batchID, types.NewQuantityFromFloat64(req.Quantity), req.Reason); err != nil {
		h.Error(c, err)
		return
	}
	h.respondLedger(c, batchID)
}

// respondLedger returns the post-operation ledger state so clients see the
// counters they just changed without a second round trip.
func (h *StockHandler) respondLedger(c *gin.Context, batchID id.ID) {
	l, err := h.ledgers.GetByBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLedger(l))
}
