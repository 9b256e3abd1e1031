package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"shopassist/internal/conversation"
	"shopassist/internal/models"
	"shopassist/internal/observability"
	"shopassist/internal/previews"
	"shopassist/internal/render"
)

const (
	maxUploadBytes = 10 << 20 // 10 MB
	previewMaxAge  = "private, max-age=86400"
)

// Handler wires HTTP routes to the per-browser conversation stores.
type Handler struct {
	sessions *conversation.Registry
	previews *previews.Store
	renderer *render.Renderer
	limiter  Limiter
	cookies  cookieNames
}

type Options struct {
	Sessions *conversation.Registry
	Previews *previews.Store
	Renderer *render.Renderer
	// Limiter throttles chat submissions per client; nil disables it.
	Limiter Limiter
}

// NewHandler constructs a Handler instance.
func NewHandler(opts Options) *Handler {
	return &Handler{
		sessions: opts.Sessions,
		previews: opts.Previews,
		renderer: opts.Renderer,
		limiter:  opts.Limiter,
		cookies:  defaultCookieNames,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(pageTemplates)
	router.Use(RequestContext())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	router.GET("/", h.showChat)
	router.GET("/api/session", h.getSession)
	router.GET(strings.TrimSuffix(previews.URLPrefix, "/")+"/:id", h.servePreview)

	chat := router.Group("/chat")
	chat.Use(h.CSRFMiddleware())
	if h.limiter != nil {
		chat.Use(RateLimit(h.limiter))
	}
	chat.POST("/text", h.submitText)
	chat.POST("/image", h.submitImage)
	chat.POST("/new", h.newChat)
	chat.POST("/draft", h.setDraft)
}

func (h *Handler) showChat(c *gin.Context) {
	store := h.store(c)
	csrf := h.ensureCSRFCookie(c)
	snap := store.Snapshot()
	c.HTML(http.StatusOK, "chat", newPageData(snap.ID, h.renderer.RenderAll(snap.Messages), snap.InputDraft, snap.IsLoading, csrf))
}

func (h *Handler) getSession(c *gin.Context) {
	snap := h.store(c).Snapshot()
	if snap.Messages == nil {
		snap.Messages = make([]models.Message, 0)
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) submitText(c *gin.Context) {
	store := h.store(c)
	if store.IsLoading() {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still pending"})
		return
	}
	text := c.PostForm("text")
	if !store.SubmitText(c.Request.Context(), text) && strings.TrimSpace(text) != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still pending"})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) submitImage(c *gin.Context) {
	store := h.store(c)
	if store.IsLoading() {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still pending"})
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read upload failed"})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read upload failed"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is empty"})
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}
	upload := models.Upload{
		Filename:    filepath.Base(file.Filename),
		ContentType: contentType,
		Data:        data,
	}
	if !store.SubmitImage(c.Request.Context(), upload) {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still pending"})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) newChat(c *gin.Context) {
	store := h.store(c)
	if store.IsLoading() {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still pending"})
		return
	}
	store.StartNewSession()
	c.Redirect(http.StatusSeeOther, "/")
}

// setDraft receives the example-question event and fills the input with it.
func (h *Handler) setDraft(c *gin.Context) {
	h.store(c).SetInputDraft(c.PostForm("text"))
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) servePreview(c *gin.Context) {
	if h.previews == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	store, ok := h.existingStore(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	p, err := h.previews.Get(c.Request.Context(), c.Param("id"))
	if err != nil || p.SessionID != store.SessionID() {
		if err != nil && !errors.Is(err, previews.ErrNotFound) {
			observability.LoggerFromContext(c.Request.Context()).Error("load preview failed", "error", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	if _, err := os.Stat(p.Path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	c.Header("Cache-Control", previewMaxAge)
	c.Header("Content-Type", p.MimeType)
	c.File(p.Path)
}
