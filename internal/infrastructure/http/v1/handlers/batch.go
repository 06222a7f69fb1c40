package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/batch"
	"lotkeeper/internal/domain/fefo"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// BatchHandler handles batch catalog and lifecycle endpoints.
type BatchHandler struct {
	*BaseHandler
	service *batch.Service
	fefo    *fefo.Service
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(base *BaseHandler, service *batch.Service, fefoService *fefo.Service) *BatchHandler {
	return &BatchHandler{
		BaseHandler: base,
		service:     service,
		fefo:        fefoService,
	}
}

// RegisterRoutes registers batch endpoints.
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/code/:code", h.GetByCode)
	rg.PUT("/:id/discount", h.SetDiscount)
	rg.DELETE("/:id/promotion", h.ClearPromotion)
	rg.POST("/:id/expire", h.MarkExpired)
	rg.POST("/:id/dispose", h.Dispose)
}

// Create registers a new batch, optionally receiving its declared quantity.
// POST /api/v1/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId").WithDetail("productId", req.ProductID))
		return
	}

	params := batch.CreateParams{
		ProductID:        productID,
		Code:             req.Code,
		ManufactureDate:  req.ManufactureDate,
		ExpiryDate:       req.ExpiryDate,
		DeclaredQuantity: types.NewQuantityFromFloat64(req.DeclaredQuantity),
		ReceiveStock:     req.ReceiveStock,
	}
	if req.PurchaseOrderID != nil {
		poID, err := id.Parse(*req.PurchaseOrderID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid purchaseOrderId").WithDetail("purchaseOrderId", *req.PurchaseOrderID))
			return
		}
		params.PurchaseOrderID = &poID
	}

	b, err := h.service.Create(c.Request.Context(), params)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, b.ID.String())
}

// GetByID returns one batch.
// GET /api/v1/batches/:id
func (h *BatchHandler) GetByID(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(b))
}

// GetByCode returns one batch by its human-readable code.
// GET /api/v1/batches/code/:code
func (h *BatchHandler) GetByCode(c *gin.Context) {
	b, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(b))
}

// List returns batches matching the filter.
// GET /api/v1/batches?productId=&status=&limit=&offset=
func (h *BatchHandler) List(c *gin.Context) {
	var req dto.ListBatchesRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults()

	filter := batch.ListFilter{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.ProductID != "" {
		productID, err := id.Parse(req.ProductID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId").WithDetail("productId", req.ProductID))
			return
		}
		filter.ProductID = &productID
	}
	if req.Status != "" {
		status := batch.Status(req.Status)
		filter.Status = &status
	}

	batches, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:  dto.FromBatches(batches),
		Count:  len(batches),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}

// SetDiscount attaches a discount promotion to a batch.
// PUT /api/v1/batches/:id/discount
func (h *BatchHandler) SetDiscount(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetDiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.service.SetDiscount(c.Request.Context(), batchID, types.NewPercent(req.DiscountPercent))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(b))
}

// ClearPromotion removes a batch's promotion.
// DELETE /api/v1/batches/:id/promotion
func (h *BatchHandler) ClearPromotion(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	b, err := h.service.ClearPromotion(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(b))
}

// MarkExpired transitions a batch to expired ahead of the sweep.
// POST /api/v1/batches/:id/expire
func (h *BatchHandler) MarkExpired(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	b, err := h.service.MarkExpired(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(b))
}

// Dispose permanently retires a batch, writing off its remaining stock.
// POST /api/v1/batches/:id/dispose
func (h *BatchHandler) Dispose(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.DisposeBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Dispose(c.Request.Context(), batchID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(b))
}

// SaleBatch answers which batch a sale of the product should draw from.
// GET /api/v1/products/:productId/sale-batch
func (h *BatchHandler) SaleBatch(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	sel, found, err := h.fefo.SelectForProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !found {
		h.Error(c, apperror.NewNotFound("sale batch", productID.String()).
			WithDetail("reason", "no active batch with shelf stock"))
		return
	}

	h.OK(c, dto.SaleBatchResponse{
		BatchID:         sel.Batch.BatchID.String(),
		Code:            sel.Batch.Code,
		ExpiryDate:      sel.Batch.ExpiryDate,
		OnShelf:         sel.Batch.OnShelf.Float64(),
		DiscountPercent: sel.DiscountPercent.InexactFloat64(),
	})
}
