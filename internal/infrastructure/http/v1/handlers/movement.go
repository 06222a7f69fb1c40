package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// MovementHandler handles audit log and refund endpoints.
type MovementHandler struct {
	*BaseHandler
	movements movement.Repository
	ledgers   *ledger.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, movements movement.Repository, ledgers *ledger.Service) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		movements:   movements,
		ledgers:     ledgers,
	}
}

// RegisterRoutes registers movement endpoints.
func (h *MovementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/product/:productId", h.ListByProduct)
	rg.GET("/reference/:kind/:refId", h.ListByReference)
	rg.GET("/turnover/:productId", h.GetTurnover)
	rg.POST("/refund-restore", h.RefundRestore)
}

// ListByProduct returns movement history for a product, newest first.
// GET /api/v1/movements/product/:productId?batchId=&type=&fromDate=&toDate=&limit=&offset=
func (h *MovementHandler) ListByProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	var req dto.ListMovementsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter := movement.Filter{
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	if req.BatchID != "" {
		batchID, err := id.Parse(req.BatchID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid batchId").WithDetail("batchId", req.BatchID))
			return
		}
		filter.BatchID = &batchID
	}
	if req.Type != "" {
		mType := movement.Type(req.Type)
		filter.Type = &mType
	}

	movements, err := h.movements.ListByProduct(c.Request.Context(), productID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:  dto.FromMovements(movements),
		Count:  len(movements),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}

// ListByReference returns every movement tied to one document, oldest first.
// GET /api/v1/movements/reference/:kind/:refId
func (h *MovementHandler) ListByReference(c *gin.Context) {
	kind := movement.ReferenceKind(c.Param("kind"))
	switch kind {
	case movement.RefOrder, movement.RefPurchaseOrder:
	default:
		h.Error(c, apperror.NewValidation("invalid reference kind").WithDetail("kind", c.Param("kind")))
		return
	}

	refID, ok := h.ParseID(c, "refId")
	if !ok {
		return
	}

	movements, err := h.movements.ListByReference(c.Request.Context(), movement.Reference{Kind: kind, ID: refID})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items: dto.FromMovements(movements),
		Count: len(movements),
	})
}

// GetTurnover sums inbound and outbound flow for a product over [from, to).
// GET /api/v1/movements/turnover/:productId?from=&to=
func (h *MovementHandler) GetTurnover(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	from, to, ok := h.parsePeriod(c)
	if !ok {
		return
	}

	turnover, err := h.movements.GetTurnover(c.Request.Context(), productID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.TurnoverResponse{
		ProductID: turnover.ProductID.String(),
		From:      from,
		To:        to,
		Inbound:   turnover.Inbound.Float64(),
		Outbound:  turnover.Outbound.Float64(),
	})
}

// RefundRestore replays an order's outbound movements to put sold stock back.
// POST /api/v1/movements/refund-restore
func (h *MovementHandler) RefundRestore(c *gin.Context) {
	var req dto.RefundRestoreRequest
	if !h.BindJSON(c, &req) {
		return
	}

	orderID, err := id.Parse(req.OrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid orderId").WithDetail("orderId", req.OrderID))
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "order refund"
	}

	ref := movement.Reference{Kind: movement.RefOrder, ID: orderID}
	restored, err := h.ledgers.RestoreFromMovements(c.Request.Context(), ref, reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.RefundRestoreResponse{
		OrderID:  orderID.String(),
		Restored: restored.Float64(),
	})
}

// parsePeriod reads from/to query params, defaulting to the last 30 days.
func (h *MovementHandler) parsePeriod(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if s := c.Query("from"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date").WithDetail("from", s))
			return from, to, false
		}
		from = parsed
	}
	if s := c.Query("to"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date").WithDetail("to", s))
			return from, to, false
		}
		to = parsed
	}
	if !to.After(from) {
		h.Error(c, apperror.NewValidation("to must be after from"))
		return from, to, false
	}
	return from, to, true
}
