package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-procurement-workflow/internal/catalog"
	"github.com/imrishuroy/go-procurement-workflow/internal/export"
	"github.com/imrishuroy/go-procurement-workflow/internal/idempotency"
	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
	"github.com/imrishuroy/go-procurement-workflow/internal/requests"
	"github.com/imrishuroy/go-procurement-workflow/internal/validation"
)

// maxUploadBytes caps the size of an uploaded offer PDF.
const maxUploadBytes = 20 << 20

// Extractor turns an uploaded vendor offer into a partial draft.
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (procurement.Extracted, []procurement.Advisory, error)
}

// HandlerConfig groups dependencies for the request routes.
type HandlerConfig struct {
	Service   *requests.Service
	Keeper    idempotency.Keeper // nil disables Idempotency-Key handling
	Catalog   *catalog.Catalog
	Extractor Extractor
	Validator *validation.Validator
}

type statusUpdateBody struct {
	NewStatus string `json:"new_status"`
	Notes     string `json:"notes"`
}

type mergeBody struct {
	Draft     procurement.Draft `json:"draft"`
	Extracted json.RawMessage   `json:"extracted"`
}

type statisticsResponse struct {
	procurement.Statistics
	TopCommodities []procurement.CommodityBreakdown `json:"top_commodities,omitempty"`
}

// RegisterRequestRoutes registers the procurement API under /api.
func RegisterRequestRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	h := &requestsHandler{cfg: cfg}

	api := r.Group("/api")
	api.GET("/commodity-groups", h.commodityGroups)
	api.POST("/requests", h.submit)
	api.GET("/requests", h.list)
	api.GET("/requests/:id", h.get)
	api.PATCH("/requests/:id/status", h.updateStatus)
	api.GET("/requests/:id/summary.pdf", h.summaryPDF)
	api.GET("/statistics", h.statistics)
	api.GET("/export/requests.xlsx", h.exportXLSX)
	api.POST("/upload-pdf", h.uploadPDF)
	api.POST("/drafts/merge", h.mergeDraft)
	api.POST("/drafts/validate", h.validateDraft)
}

type requestsHandler struct {
	cfg HandlerConfig
}

func (h *requestsHandler) commodityGroups(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Catalog.Groups())
}

func (h *requestsHandler) submit(c *gin.Context) {
	ctx := c.Request.Context()

	key := c.GetHeader("Idempotency-Key")
	if key == "" || h.cfg.Keeper == nil {
		var d procurement.Draft
		if err := c.ShouldBindJSON(&d); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
			return
		}
		req, err := h.cfg.Service.Submit(ctx, d)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Location", "/api/requests/"+req.ID)
		c.JSON(http.StatusCreated, req)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	fingerprint := idempotency.Fingerprint(raw)

	claimed, err := h.cfg.Keeper.Begin(ctx, key, fingerprint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return
	}
	if !claimed {
		h.replay(c, key, fingerprint)
		return
	}

	var d procurement.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		h.failKey(ctx, key, "invalid body: "+err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	req, err := h.cfg.Service.Submit(ctx, d)
	if err != nil {
		// a corrected draft may be resent under the same key
		h.failKey(ctx, key, err.Error())
		writeError(c, err)
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed", "detail": err.Error()})
		return
	}
	if err := h.cfg.Keeper.Complete(ctx, key, req.ID, string(body), http.StatusCreated); err != nil {
		log.Printf("[handlers] idempotency complete for key %s failed: %v", key, err)
	}
	c.Header("Location", "/api/requests/"+req.ID)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// failKey releases a claimed key so the submission can be retried.
func (h *requestsHandler) failKey(ctx context.Context, key, note string) {
	if err := h.cfg.Keeper.Fail(ctx, key, note); err != nil {
		log.Printf("[handlers] idempotency fail for key %s failed: %v", key, err)
	}
}

// replay answers a duplicate submission from the stored record.
func (h *requestsHandler) replay(c *gin.Context, key, fingerprint string) {
	rec, err := h.cfg.Keeper.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_record_missing"})
		return
	}
	if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			if rec.RequestID != "" {
				c.Header("Location", "/api/requests/"+rec.RequestID)
			}
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": rec.RequestID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (h *requestsHandler) list(c *gin.Context) {
	all, err := h.cfg.Service.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	if all == nil {
		all = []procurement.ProcurementRequest{}
	}
	c.JSON(http.StatusOK, all)
}

func (h *requestsHandler) get(c *gin.Context) {
	req, err := h.cfg.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *requestsHandler) updateStatus(c *gin.Context) {
	var body statusUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	req, err := h.cfg.Service.UpdateStatus(c.Request.Context(), c.Param("id"), body.NewStatus, body.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *requestsHandler) statistics(c *gin.Context) {
	top := 0
	if v := c.Query("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_top", "msg": "top must be a positive integer"})
			return
		}
		top = n
	}
	stats, err := h.cfg.Service.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := statisticsResponse{Statistics: stats}
	if top > 0 {
		resp.TopCommodities = procurement.TopCommodities(stats.CommodityBreakdown, top)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *requestsHandler) exportXLSX(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.cfg.Service.List(ctx, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := export.RequestsXLSX(all, procurement.Aggregate(all))
	if err != nil {
		writeError(c, fmt.Errorf("render xlsx: %w", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="procurement-requests.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *requestsHandler) summaryPDF(c *gin.Context) {
	req, err := h.cfg.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := export.RequestPDF(*req)
	if err != nil {
		writeError(c, fmt.Errorf("render pdf: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="request-%s.pdf"`, req.ID))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *requestsHandler) uploadPDF(c *gin.Context) {
	if h.cfg.Extractor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "extraction_unavailable"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file", "msg": err.Error()})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only_pdf_allowed", "msg": "Only PDF files are allowed"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file", "msg": err.Error()})
		return
	}
	defer f.Close()

	x, adv, err := h.cfg.Extractor.Extract(c.Request.Context(), filepath.Base(fh.Filename), f)
	if err != nil {
		log.Printf("[handlers] extraction of %s failed: %v", fh.Filename, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "extraction_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"extracted": x, "advisories": nonNilAdvisories(adv)})
}

func (h *requestsHandler) mergeDraft(c *gin.Context) {
	var body mergeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	merged, adv := h.cfg.Service.Merge(body.Draft, body.Extracted)
	c.JSON(http.StatusOK, gin.H{"draft": merged, "advisories": nonNilAdvisories(adv)})
}

func (h *requestsHandler) validateDraft(c *gin.Context) {
	var d procurement.Draft
	if err := validation.BindDraft(c, &d, h.cfg.Validator); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "draft": d})
}

func nonNilAdvisories(adv []procurement.Advisory) []procurement.Advisory {
	if adv == nil {
		return []procurement.Advisory{}
	}
	return adv
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, procurement.ErrValidation):
		validation.WriteError(c, err)
	case errors.Is(err, procurement.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "msg": err.Error()})
	case errors.Is(err, requests.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, procurement.ErrNoOpTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "noop_transition", "msg": err.Error()})
	case errors.Is(err, procurement.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "illegal_transition", "msg": err.Error()})
	case errors.Is(err, requests.ErrStatusMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "status_conflict", "msg": "request status changed concurrently, reload and retry"})
	default:
		log.Printf("[handlers] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
