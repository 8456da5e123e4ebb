package ingest

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"ldn/internal/constants"
	"ldn/internal/logger"
	pkgerrors "ldn/pkg/errors"
	"ldn/pkg/models"
)

const (
	ldpContext                   = "http://www.w3.org/ns/ldp"
	allowedMethod                = "GET, HEAD, OPTIONS, POST"
	defaultMaxPayloadBytes int64 = 1 << 20
)

type MessageLister interface {
	List(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
	Get(ctx context.Context, id string) (*models.Message, error)
}

// Handler exposes the LDN inbox: receivers POST notifications to it and
// consumers list its contents.
type Handler struct {
	service         *Service
	messages        MessageLister
	baseURL         string
	maxPayloadBytes int64
	logger          logger.Logger
}

func NewHandler(service *Service, messages MessageLister, baseURL string, maxPayloadBytes int64, log logger.Logger) *Handler {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = defaultMaxPayloadBytes
	}
	return &Handler{
		service:         service,
		messages:        messages,
		baseURL:         strings.TrimRight(baseURL, "/"),
		maxPayloadBytes: maxPayloadBytes,
		logger:          log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter, middleware ...gin.HandlerFunc) {
	inbox := router.Group("/inbox")
	{
		inbox.POST("", append(middleware, h.Receive)...)
		inbox.GET("", h.List)
		inbox.HEAD("", h.Options)
		inbox.OPTIONS("", h.Options)
		inbox.GET("/:id", h.Get)
	}
}

func (h *Handler) inboxURL(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL + "/inbox"
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/inbox"
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := pkgerrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, pkgerrors.ToErrorResponse(err))
}

// Receive godoc
// @Summary      Receive a notification
// @Description  Accepts a COAR Notify / ActivityStreams notification and queues it
// @Tags         inbox
// @Accept       application/ld+json
// @Produce      json
// @Param        notification  body  object  true  "Notification"
// @Success      201
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Failure      413  {object}  errors.ErrorResponse
// @Failure      415  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /inbox [post]
func (h *Handler) Receive(c *gin.Context) {
	if !acceptableContentType(c.GetHeader("Content-Type")) {
		c.JSON(http.StatusUnsupportedMediaType, pkgerrors.ToErrorResponse(
			pkgerrors.ErrValidation.WithDetail("message", "content type must be application/ld+json"),
		))
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, pkgerrors.ToErrorResponse(
				pkgerrors.ErrValidation.WithDetail("message", "notification too large"),
			))
			return
		}
		h.handleError(c, pkgerrors.ErrPayloadMalformed.WithCause(err))
		return
	}

	msg, err := h.service.Ingest(c.Request.Context(), raw, c.ClientIP())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", h.inboxURL(c)+"/"+url.PathEscape(msg.ID))
	c.Status(http.StatusCreated)
}

// List godoc
// @Summary      List inbox contents
// @Description  Returns the LDP container of received notifications
// @Tags         inbox
// @Produce      application/ld+json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /inbox [get]
func (h *Handler) List(c *gin.Context) {
	msgs, err := h.messages.List(c.Request.Context(), models.MessageFilter{Limit: constants.DefaultLimit})
	if err != nil {
		h.handleError(c, err)
		return
	}

	base := h.inboxURL(c)
	contains := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contains = append(contains, base+"/"+url.PathEscape(m.ID))
	}

	c.Header("Content-Type", constants.ContentTypeLDJSON)
	c.JSON(http.StatusOK, gin.H{
		"@context": ldpContext,
		"@id":      base,
		"contains": contains,
	})
}

// Get godoc
// @Summary      Get a notification
// @Description  Returns a received notification as it was delivered
// @Tags         inbox
// @Produce      application/ld+json
// @Param        id   path  string  true  "Notification id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /inbox/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Data(http.StatusOK, constants.ContentTypeLDJSON, msg.RawPayload)
}

func (h *Handler) Options(c *gin.Context) {
	c.Header("Allow", allowedMethod)
	c.Header("Accept-Post", constants.ContentTypeLDJSON)
	c.Status(http.StatusOK)
}

func acceptableContentType(header string) bool {
	if header == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == constants.ContentTypeLDJSON || mediaType == "application/json"
}
