package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ldn/internal/constants"
	"ldn/internal/logger"
	"ldn/pkg/errors"
	"ldn/pkg/models"
)

const changedByHeader = "X-Changed-By"

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.DebugwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter, middleware ...gin.HandlerFunc) {
	v1 := router.Group("/api/v1", middleware...)
	{
		origins := v1.Group("/origins")
		{
			origins.GET("", h.ListOrigins)
			origins.POST("", h.CreateOrigin)
			origins.GET("/:id", h.GetOrigin)
			origins.PUT("/:id", h.UpdateOrigin)
			origins.DELETE("/:id", h.DeleteOrigin)
			origins.PATCH("/:id/toggle", h.ToggleOrigin)
			origins.GET("/:id/audit", h.GetOriginAuditLogs)
		}

		messages := v1.Group("/messages")
		{
			messages.GET("", h.ListMessages)
			messages.GET("/:id", h.GetMessage)
			messages.POST("/:id/requeue", h.RequeueMessage)
			messages.POST("/:id/retrust", h.RetrustMessage)
		}

		queue := v1.Group("/queue")
		{
			queue.GET("/stats", h.QueueStats)
			queue.POST("/drain", h.Drain)
			queue.POST("/sweep", h.Sweep)
		}

		v1.GET("/request-status", h.RequestStatus)
		v1.GET("/audit/logs", h.GetAuditLogs)
	}
}

func actorFrom(c *gin.Context) Actor {
	return Actor{
		ChangedBy: c.GetHeader(changedByHeader),
		IPAddress: c.ClientIP(),
	}
}

// ListOrigins godoc
// @Summary      List origin services
// @Description  Get all registered origin services
// @Tags         origins
// @Produce      json
// @Success      200  {array}   models.OriginService
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /api/v1/origins [get]
func (h *Handler) ListOrigins(c *gin.Context) {
	origins, err := h.Service.ListOrigins(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, origins)
}

// CreateOrigin godoc
// @Summary      Register an origin service
// @Description  Register a service allowed to send notifications
// @Tags         origins
// @Accept       json
// @Produce      json
// @Param        origin  body      CreateOriginRequest  true  "Origin service"
// @Success      201     {object}  models.OriginService
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      409     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /api/v1/origins [post]
func (h *Handler) CreateOrigin(c *gin.Context) {
	var req CreateOriginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	origin, err := h.Service.CreateOrigin(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, origin)
}

// GetOrigin godoc
// @Summary      Get an origin service
// @Tags         origins
// @Produce      json
// @Param        id   path      string  true  "Origin ID"
// @Success      200  {object}  models.OriginService
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /api/v1/origins/{id} [get]
func (h *Handler) GetOrigin(c *gin.Context) {
	origin, err := h.Service.GetOrigin(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, origin)
}

// UpdateOrigin godoc
// @Summary      Update an origin service
// @Tags         origins
// @Accept       json
// @Produce      json
// @Param        id      path      string               true  "Origin ID"
// @Param        origin  body      UpdateOriginRequest  true  "Fields to change"
// @Success      200     {object}  models.OriginService
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Failure      409     {object}  errors.ErrorResponse
// @Router       /api/v1/origins/{id} [put]
func (h *Handler) UpdateOrigin(c *gin.Context) {
	var req UpdateOriginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	origin, err := h.Service.UpdateOrigin(c.Request.Context(), c.Param("id"), req, actorFrom(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, origin)
}

// DeleteOrigin godoc
// @Summary      Delete an origin service
// @Tags         origins
// @Param        id   path  string  true  "Origin ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /api/v1/origins/{id} [delete]
func (h *Handler) DeleteOrigin(c *gin.Context) {
	if err := h.Service.DeleteOrigin(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleOrigin godoc
// @Summary      Enable or disable an origin service
// @Description  Flips the enabled flag. Disabled origins are treated as unknown senders.
// @Tags         origins
// @Produce      json
// @Param        id   path      string  true  "Origin ID"
// @Success      200  {object}  models.OriginService
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /api/v1/origins/{id}/toggle [patch]
func (h *Handler) ToggleOrigin(c *gin.Context) {
	origin, err := h.Service.ToggleOrigin(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, origin)
}

// GetOriginAuditLogs godoc
// @Summary      Get audit logs for an origin
// @Tags         audit
// @Produce      json
// @Param        id     path   string  true   "Origin ID"
// @Param        limit  query  int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200    {array}   AuditLog
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /api/v1/origins/{id}/audit [get]
func (h *Handler) GetOriginAuditLogs(c *gin.Context) {
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), c.Param("id"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Tags         audit
// @Produce      json
// @Param        origin_id  query  string  false  "Filter by origin ID"
// @Param        limit      query  int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200        {array}   AuditLog
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /api/v1/audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), c.Query("origin_id"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListMessages godoc
// @Summary      List queued messages
// @Tags         queue
// @Produce      json
// @Param        status  query  string  false  "Queue status"
// @Param        limit   query  int     false  "Maximum number of messages (1-1000)" default(100)
// @Success      200     {array}   models.Message
// @Failure      400     {object}  errors.ErrorResponse
// @Router       /api/v1/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	filter := models.MessageFilter{
		Status: models.QueueStatus(c.Query("status")),
		Limit:  parseLimit(c.Query("limit")),
	}
	msgs, err := h.Service.ListMessages(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// GetMessage godoc
// @Summary      Get a message with its queue state
// @Tags         queue
// @Produce      json
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  models.Message
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /api/v1/messages/{id} [get]
func (h *Handler) GetMessage(c *gin.Context) {
	msg, err := h.Service.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// RequeueMessage godoc
// @Summary      Requeue a parked message
// @Description  Moves a FAILED, UNMAPPED_ACTION or UNTRUSTED_IP message back to QUEUED
// @Tags         queue
// @Produce      json
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  models.Message
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Router       /api/v1/messages/{id}/requeue [post]
func (h *Handler) RequeueMessage(c *gin.Context) {
	msg, err := h.Service.RequeueMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// RetrustMessage godoc
// @Summary      Re-evaluate trust for an untrusted message
// @Tags         queue
// @Produce      json
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  models.Message
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Router       /api/v1/messages/{id}/retrust [post]
func (h *Handler) RetrustMessage(c *gin.Context) {
	msg, err := h.Service.RetrustMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// QueueStats godoc
// @Summary      Queue depth by status
// @Tags         queue
// @Produce      json
// @Success      200  {object}  QueueStats
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /api/v1/queue/stats [get]
func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.Service.QueueStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Drain godoc
// @Summary      Drain the queue now
// @Tags         queue
// @Produce      json
// @Success      200  {object}  DrainResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /api/v1/queue/drain [post]
func (h *Handler) Drain(c *gin.Context) {
	result, err := h.Service.Drain(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, DrainResponse{
		ProcessedCount: result.ProcessedCount,
		NoHandlerCount: result.NoHandlerCount,
	})
}

// Sweep godoc
// @Summary      Sweep stalled messages now
// @Tags         queue
// @Produce      json
// @Success      200  {object}  SweepResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /api/v1/queue/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	swept, err := h.Service.Sweep(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, SweepResponse{Swept: swept})
}

// RequestStatus godoc
// @Summary      Request outcomes for a repository object
// @Description  Lists every Offer made about the object with its derived outcome
// @Tags         request-status
// @Produce      json
// @Param        object  query     string  true  "Object reference"
// @Success      200     {array}   models.RequestStatus
// @Failure      400     {object}  errors.ErrorResponse
// @Router       /api/v1/request-status [get]
func (h *Handler) RequestStatus(c *gin.Context) {
	statuses, err := h.Service.RequestStatus(c.Request.Context(), c.Query("object"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 {
		return constants.DefaultLimit
	}
	if parsed > constants.MaxLimit {
		return constants.MaxLimit
	}
	return parsed
}
