package apihandlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/app"
	"picturereader/internal/i18n"
	"picturereader/internal/inputprocessor"
	"picturereader/internal/models"
	"picturereader/internal/prompts"
	"picturereader/internal/recognition"
	"picturereader/internal/services"
	"picturereader/internal/store"
)

// maxWait bounds ?wait=true on POST /recognitions.
const maxWait = 5 * time.Minute

type APIHandler struct {
	App *app.App
	// MaxImageBytes bounds uploads; zero means inputprocessor.DefaultMaxBytes.
	MaxImageBytes int64
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a, MaxImageBytes: inputprocessor.DefaultMaxBytes}
}

// RegisterRoutes mounts the API under /api/v1 plus /health and /metrics.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		promptGroup := v1.Group("/prompts")
		{
			promptGroup.GET("", h.ListPromptsHandler)
			promptGroup.GET("/resolve", h.ResolvePromptHandler)
		}

		v1.POST("/recognitions", h.SubmitRecognitionHandler)
		v1.GET("/state", h.GetStateHandler)
		v1.GET("/state/stream", h.StreamStateHandler)
		v1.POST("/reset", h.ResetHandler)

		historyGroup := v1.Group("/history")
		{
			historyGroup.GET("", h.ListHistoryHandler)
			historyGroup.GET("/:id", h.GetHistoryHandler)
		}

		costGroup := v1.Group("/cost")
		{
			costGroup.GET("/summary", h.CostSummaryHandler)
			costGroup.GET("/usage", h.ListUsageHandler)
		}
	}

	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// ListPromptsHandler lists every language with its templates.
func (h *APIHandler) ListPromptsHandler(c *gin.Context) {
	resolver := h.App.Resolver()
	langs := resolver.Languages()
	if q := c.Query("language"); q != "" {
		lang, ok := prompts.LookupLanguage(q)
		if !ok {
			BadRequest(c, fmt.Sprintf("unsupported language: %s", q))
			return
		}
		langs = []prompts.Language{lang}
	}

	items := make([]LanguagePrompts, 0, len(langs))
	for _, lang := range langs {
		items = append(items, LanguagePrompts{
			Language:        lang,
			Name:            i18n.LanguageName(lang),
			DefaultCategory: resolver.DefaultCategory(lang),
			Templates:       resolver.Templates(lang),
			Labels:          i18n.Labels(lang),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// ResolvePromptHandler resolves a selection. It never fails: unknown values
// fall back like the resolver does.
func (h *APIHandler) ResolvePromptHandler(c *gin.Context) {
	lang := h.language(c.Query("language"))
	tmpl := h.App.Resolver().Resolve(lang, prompts.Category(c.Query("category")))
	c.JSON(http.StatusOK, gin.H{"data": ResolvedPrompt{Language: lang, Template: tmpl}})
}

// SubmitRecognitionHandler accepts a multipart upload (field "image") and
// submits it. It answers 202 with the Loading state, or with the terminal
// state when ?wait=true is given.
func (h *APIHandler) SubmitRecognitionHandler(c *gin.Context) {
	image, filename, err := h.readUpload(c)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnsupportedImage):
			Unsupported(c, err.Error())
		default:
			BadRequest(c, err.Error())
		}
		return
	}

	lang, ok := h.requestLanguage(c.PostForm("language"))
	if !ok {
		BadRequest(c, fmt.Sprintf("unsupported language: %s", c.PostForm("language")))
		return
	}
	coord := h.App.Coordinator
	sub, err := coord.SubmitImage(image, lang, prompts.Category(c.PostForm("category")),
		recognition.WithSource("upload:"+filename))
	if err != nil {
		Unavailable(c, fmt.Sprintf("recognition not started: %v", err))
		return
	}
	ticket := sub.Ticket

	resp := SubmissionResponse{
		RequestID:  ticket.ID,
		Generation: ticket.Generation,
		Language:   sub.Language,
		Category:   sub.Template.Category,
		Prompt:     sub.Template.PromptText,
		State:      recognition.View(recognition.Loading{}),
	}
	if wait, _ := strconv.ParseBool(c.Query("wait")); !wait {
		c.JSON(http.StatusAccepted, gin.H{"data": resp})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), maxWait)
	defer cancel()
	state, err := coord.Wait(ctx, ticket)
	switch {
	case err == nil:
		resp.State = recognition.View(state)
		c.JSON(http.StatusOK, gin.H{"data": resp})
	case errors.Is(err, recognition.ErrSuperseded):
		JSONError(c, http.StatusConflict, "superseded", err.Error())
	default:
		Unavailable(c, fmt.Sprintf("waiting for recognition %s: %v", ticket.ID, err))
	}
}

func (h *APIHandler) readUpload(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("missing image upload: %w", err)
	}
	limit := h.MaxImageBytes
	if limit <= 0 {
		limit = inputprocessor.DefaultMaxBytes
	}
	if fh.Size > limit {
		return nil, "", fmt.Errorf("image is %d bytes, over the %d byte limit", fh.Size, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("image is over the %d byte limit", limit)
	}
	if _, _, err := services.DetectImageFormat(data); err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

// GetStateHandler returns the latest published state.
func (h *APIHandler) GetStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": recognition.View(h.App.Coordinator.State())})
}

// StreamStateHandler streams every state as a server-sent "state" event until
// the client goes away or the coordinator closes.
func (h *APIHandler) StreamStateHandler(c *gin.Context) {
	states, cancel := h.App.Coordinator.Subscribe()
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case s, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("state", recognition.View(s))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// ResetHandler returns the coordinator to Initial.
func (h *APIHandler) ResetHandler(c *gin.Context) {
	h.App.Coordinator.Reset()
	c.JSON(http.StatusOK, gin.H{"data": recognition.View(h.App.Coordinator.State())})
}

func (h *APIHandler) ListHistoryHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	recs, err := h.App.HistoryService.List(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListHistoryHandler: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": recs})
}

func (h *APIHandler) GetHistoryHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, fmt.Sprintf("invalid request id: %s", c.Param("id")))
		return
	}
	rec, err := h.App.HistoryService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Recognition not found with ID: %s", id))
		} else {
			Internal(c, fmt.Sprintf("GetHistoryHandler: %v", err))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (h *APIHandler) CostSummaryHandler(c *gin.Context) {
	summary, err := h.App.CostService.GetSummary(c.Request.Context())
	if err != nil {
		Internal(c, fmt.Sprintf("CostSummaryHandler: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *APIHandler) ListUsageHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	logs, err := h.App.CostService.ListUsage(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListUsageHandler: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

// HealthHandler reports store connectivity and provider status.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	provider := "none"
	status := store.ProviderStatusUnknown
	if r := h.App.Recognizer; r != nil {
		provider, status = r.Name(), r.Status()
	}
	body := gin.H{"status": "ok", "provider": provider, "provider_status": status.String()}

	if err := h.App.Store.Ping(c.Request.Context()); err != nil {
		log.Warnf("Health check: store ping failed: %v", err)
		body["status"] = "degraded"
		body["store_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// requestLanguage is language for explicit client input: a given but
// unknown language is rejected instead of falling back.
func (h *APIHandler) requestLanguage(s string) (prompts.Language, bool) {
	if strings.TrimSpace(s) == "" {
		return h.language(""), true
	}
	return prompts.LookupLanguage(s)
}

func (h *APIHandler) language(s string) prompts.Language {
	if strings.TrimSpace(s) == "" {
		if h.App.DefaultLanguage == "" {
			return prompts.EN
		}
		return h.App.DefaultLanguage
	}
	return prompts.ParseLanguage(s)
}

func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit, offset = 20, 0
	if l := c.Query("limit"); l != "" {
		parsed, convErr := strconv.Atoi(l)
		if convErr != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid limit: %s", l)
		}
		limit = parsed
	}
	if o := c.Query("offset"); o != "" {
		parsed, convErr := strconv.Atoi(o)
		if convErr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %s", o)
		}
		offset = parsed
	}
	return limit, offset, nil
}
