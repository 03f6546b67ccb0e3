package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"

	"luckydraw/internal/live"
	"luckydraw/internal/models"
	"luckydraw/internal/services"
	"luckydraw/internal/spreadsheet"
)

const (
	tenantHeader = "X-Tenant-ID"
	tenantCookie = "lottery_tenant"
	tenantKey    = "tenantID"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service   *services.LotteryService
	parsers   spreadsheet.ParserFactory
	hub       *live.Hub
	maxUpload int64
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, hub *live.Hub, maxUploadBytes int64) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		parsers:   spreadsheet.NewFactory(),
		hub:       hub,
		maxUpload: maxUploadBytes,
	}
}

// TenantMiddleware identifies the event a request belongs to, issuing a
// cookie to browsers that have none.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			tenantID, _ = c.Cookie(tenantCookie)
		}
		if tenantID == "" {
			tenantID = uuid.NewString()
			c.SetCookie(tenantCookie, tenantID, 0, "/", "", false, true)
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

// RegisterPublicRoutes registers routes that need no tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterTenantRoutes registers all the operator and display routes.
func (h *HTTPHandler) RegisterTenantRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.ServeDisplay)

	api := router.Group("/api")
	api.GET("/state", h.GetState)

	api.GET("/participants", h.ListParticipants)
	api.POST("/participants", h.AddParticipant)
	api.POST("/participants/import", h.ImportParticipants)

	api.GET("/prizes", h.ListPrizes)
	api.POST("/prizes", h.AddPrize)
	api.DELETE("/prizes/:id", h.DeletePrize)

	api.GET("/rules", h.ListRules)
	api.POST("/rules", h.AddRule)
	api.DELETE("/rules", h.RemoveRule)

	api.POST("/draw/select", h.SelectPrize)
	api.POST("/draw/clear", h.ClearSelection)
	api.POST("/draw/start", h.StartDraw)
	api.POST("/draw/stop", h.StopDraw)
	api.POST("/draw/commit", h.CommitDraw)

	api.GET("/winners", h.ListWinners)
	api.GET("/winners/export", h.ExportWinners)

	api.POST("/reset/winners", h.ResetWinners)
	api.POST("/reset/all", h.ResetAll)
}

func tenantOf(c *gin.Context) string {
	return c.GetString(tenantKey)
}

func (h *HTTPHandler) draw(c *gin.Context) *services.DrawSession {
	return h.service.Session(tenantOf(c))
}

// publish pushes the tenant's draw screen to its displays.
func (h *HTTPHandler) publish(c *gin.Context, kind string) {
	h.hub.Publish(tenantOf(c), live.Message{Type: kind, State: h.draw(c).Snapshot()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrPrizeNotFound), errors.Is(err, services.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidPrize), errors.Is(err, services.ErrInvalidParticipant):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// ServeDisplay attaches a display screen to the live feed.
func (h *HTTPHandler) ServeDisplay(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request, tenantOf(c)); err != nil {
		logger.Infof("Display connection failed: %v", err)
		return
	}
	h.publish(c, "snapshot")
}

// GetState returns the draw screen snapshot.
func (h *HTTPHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.draw(c).Snapshot())
}

// ListParticipants returns every participant in import order.
func (h *HTTPHandler) ListParticipants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"participants": h.draw(c).Participants()})
}

type participantRequest struct {
	ID         string `json:"id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Department string `json:"department"`
}

// AddParticipant adds one participant by hand.
func (h *HTTPHandler) AddParticipant(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p := models.Participant{ID: req.ID, Name: req.Name, Department: req.Department}
	if err := h.draw(c).AddParticipant(p); err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "snapshot")
	c.JSON(http.StatusCreated, gin.H{"participants": h.draw(c).Participants()})
}

// ImportParticipants handles the spreadsheet upload for participants. A file
// that cannot be read imports nothing.
func (h *HTTPHandler) ImportParticipants(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving file: " + err.Error()})
		return
	}
	file, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error opening file: " + err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading file: " + err.Error()})
		return
	}

	report, err := spreadsheet.ReadParticipants(h.parsers, fh.Filename, data)
	if err != nil {
		logger.Infof("Import of %q failed: %v", fh.Filename, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Error parsing file. Ensure it has columns for ID and Name: " + err.Error()})
		return
	}

	added, duplicates := h.draw(c).ImportParticipants(report.Participants)
	h.publish(c, "snapshot")
	c.JSON(http.StatusOK, gin.H{
		"imported":       added,
		"duplicates":     duplicates,
		"skipped":        report.Skipped,
		"headerDetected": report.HeaderDetected,
	})
}

// ListPrizes returns the prize board.
func (h *HTTPHandler) ListPrizes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prizes": h.draw(c).PrizeBoard()})
}

type prizeRequest struct {
	Name  string `json:"name" binding:"required"`
	Count int    `json:"count" binding:"required,gte=1"`
	Level int    `json:"level" binding:"gte=0"`
	Image string `json:"image"`
}

// AddPrize creates a prize.
func (h *HTTPHandler) AddPrize(c *gin.Context) {
	var req prizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	prize, err := h.draw(c).AddPrize(req.Name, req.Count, req.Level, req.Image)
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "snapshot")
	c.JSON(http.StatusCreated, prize)
}

// DeletePrize removes a prize without winners.
func (h *HTTPHandler) DeletePrize(c *gin.Context) {
	if err := h.draw(c).DeletePrize(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "snapshot")
	c.Status(http.StatusNoContent)
}

// ListRules returns the override rules.
func (h *HTTPHandler) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.draw(c).Rules()})
}

type ruleRequest struct {
	PrizeID       string `json:"prizeId" form:"prizeId" binding:"required"`
	ParticipantID string `json:"participantId" form:"participantId" binding:"required"`
}

// AddRule forces a participant onto a prize.
func (h *HTTPHandler) AddRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.draw(c).AddRule(req.PrizeID, req.ParticipantID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rules": h.draw(c).Rules()})
}

// RemoveRule drops an override rule given by query parameters.
func (h *HTTPHandler) RemoveRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	removed := h.draw(c).RemoveRule(req.PrizeID, req.ParticipantID)
	c.JSON(http.StatusOK, gin.H{"removed": removed, "rules": h.draw(c).Rules()})
}

type selectRequest struct {
	PrizeID string `json:"prizeId" binding:"required"`
}

// SelectPrize chooses the prize to draw.
func (h *HTTPHandler) SelectPrize(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.draw(c).SelectPrize(req.PrizeID); err != nil {
		fail(c, err)
		return
	}
	h.respondState(c, "snapshot")
}

// ClearSelection leaves the draw screen.
func (h *HTTPHandler) ClearSelection(c *gin.Context) {
	if err := h.draw(c).ClearSelection(); err != nil {
		fail(c, err)
		return
	}
	h.respondState(c, "snapshot")
}

// StartDraw starts the selection animation.
func (h *HTTPHandler) StartDraw(c *gin.Context) {
	if err := h.draw(c).Start(); err != nil {
		fail(c, err)
		return
	}
	h.respondState(c, "draw_started")
}

// StopDraw fixes the round's winners.
func (h *HTTPHandler) StopDraw(c *gin.Context) {
	if _, err := h.draw(c).Stop(); err != nil {
		fail(c, err)
		return
	}
	h.respondState(c, "draw_stopped")
}

// CommitDraw records the pending winners.
func (h *HTTPHandler) CommitDraw(c *gin.Context) {
	records, err := h.draw(c).Commit()
	if err != nil {
		fail(c, err)
		return
	}
	snap := h.draw(c).Snapshot()
	if len(records) > 0 {
		h.hub.Publish(tenantOf(c), live.Message{Type: "round_committed", State: snap, Records: records})
	}
	c.JSON(http.StatusOK, gin.H{"committed": records, "state": snap})
}

func (h *HTTPHandler) respondState(c *gin.Context, kind string) {
	snap := h.draw(c).Snapshot()
	h.hub.Publish(tenantOf(c), live.Message{Type: kind, State: snap})
	c.JSON(http.StatusOK, snap)
}

// ListWinners returns the winners history grouped by prize.
func (h *HTTPHandler) ListWinners(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": h.draw(c).History()})
}

// ExportWinners handles the request to download the winners as a spreadsheet.
func (h *HTTPHandler) ExportWinners(c *gin.Context) {
	format, err := spreadsheet.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err)
		return
	}
	records, prizes := h.draw(c).Results()

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", "attachment;filename="+format.Filename())
	c.Status(http.StatusOK)
	if err := spreadsheet.WriteWinners(c.Writer, format, records, prizes); err != nil {
		logger.Errorf("Error writing %s export: %v", format, err)
	}
}

// ResetWinners clears the winner ledger only.
func (h *HTTPHandler) ResetWinners(c *gin.Context) {
	if err := h.draw(c).ResetWinners(); err != nil {
		fail(c, err)
		return
	}
	h.respondState(c, "snapshot")
}

// ResetAll clears the whole event.
func (h *HTTPHandler) ResetAll(c *gin.Context) {
	if err := h.draw(c).ResetAll(); err != nil {
		fail(c, err)
		return
	}
	h.respondState(c, "snapshot")
}
