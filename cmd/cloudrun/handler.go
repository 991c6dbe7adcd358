package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"deeppoint-scraper/internal/config"
	"deeppoint-scraper/internal/models"
	"deeppoint-scraper/internal/scraper"

	"go.uber.org/zap"
)

const (
	defaultTimeoutMs = 300000
	maxTimeoutMs     = 240000
	minTimeoutMs     = 1000
	maxRetriesParam  = 5
	maxItemsParam    = 50
	maxCommentsParam = 200
)

// CloudRunHandler serves search requests against the registered platforms.
type CloudRunHandler struct {
	registry *scraper.Registry
	cfg      config.ScrapeConfig
	logger   *zap.Logger
	apiKeys  []string
	keysLock sync.RWMutex
}

// NewCloudRunHandler creates a handler and loads API keys from the environment.
func NewCloudRunHandler(registry *scraper.Registry, cfg config.ScrapeConfig, logger *zap.Logger) *CloudRunHandler {
	handler := &CloudRunHandler{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
	handler.loadAPIKeys()
	return handler
}

// loadAPIKeys loads comma-separated API keys from SCRAPER_API_KEYS.
func (h *CloudRunHandler) loadAPIKeys() {
	h.keysLock.Lock()
	defer h.keysLock.Unlock()

	keysStr := os.Getenv("SCRAPER_API_KEYS")
	if keysStr == "" {
		h.logger.Warn("No API keys configured (SCRAPER_API_KEYS not set)")
		h.apiKeys = []string{}
		return
	}

	keys := strings.Split(keysStr, ",")
	h.apiKeys = make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key != "" {
			h.apiKeys = append(h.apiKeys, key)
		}
	}
	h.logger.Info("Loaded API keys", zap.Int("count", len(h.apiKeys)))
}

// validateAPIKey validates the API key from the request against configured keys
// Uses constant-time comparison to prevent timing attacks
func (h *CloudRunHandler) validateAPIKey(requestKey string) bool {
	h.keysLock.RLock()
	defer h.keysLock.RUnlock()

	// If no keys configured, allow all requests (development mode)
	if len(h.apiKeys) == 0 {
		return true
	}

	for _, validKey := range h.apiKeys {
		if subtle.ConstantTimeCompare([]byte(requestKey), []byte(validKey)) == 1 {
			return true
		}
	}
	return false
}

// Routes registers the HTTP endpoints on mux.
func (h *CloudRunHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/search", h.withCommon(h.Search))
	mux.HandleFunc("/search/deep", h.withCommon(h.DeepSearch))
	mux.HandleFunc("/healthz", h.Health)
}

// withCommon applies CORS, method and API key checks.
func (h *CloudRunHandler) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			h.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		h.logger.Info("Request received", zap.String("method", r.Method), zap.String("path", r.URL.Path))

		if !h.validateAPIKey(r.URL.Query().Get("key")) {
			h.errorResponse(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// Health reports liveness.
func (h *CloudRunHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"platforms": h.registry.Names(),
	})
}

// Search handles GET /search?keyword=K[&retries=N][&limit=L].
func (h *CloudRunHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := strings.TrimSpace(q.Get("keyword"))
	if keyword == "" {
		h.errorResponse(w, http.StatusBadRequest, "Missing \"keyword\" query parameter")
		return
	}
	controller, ok := h.registry.Lookup(q.Get("platform"))
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Unknown platform")
		return
	}
	retries, err := intParam(q.Get("retries"), h.cfg.MaxRetries, 0, maxRetriesParam)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid \"retries\" query parameter")
		return
	}
	// Without a limit every extracted item is served.
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if limit, err = intParam(raw, 0, 1, maxItemsParam); err != nil {
			h.errorResponse(w, http.StatusBadRequest, "Invalid \"limit\" query parameter")
			return
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	start := time.Now()
	items, err := controller.RunSearch(ctx, keyword, retries)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	h.respond(w, keyword, scraper.ModeSearch, start, items, err)
}

// DeepSearch handles GET /search/deep?keyword=K[&max_items=N][&max_comments=M].
func (h *CloudRunHandler) DeepSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := strings.TrimSpace(q.Get("keyword"))
	if keyword == "" {
		h.errorResponse(w, http.StatusBadRequest, "Missing \"keyword\" query parameter")
		return
	}
	controller, ok := h.registry.Lookup(q.Get("platform"))
	if !ok {
		h.errorResponse(w, http.StatusBadRequest, "Unknown platform")
		return
	}
	maxItems, err := intParam(q.Get("max_items"), h.cfg.MaxItems, 1, maxItemsParam)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid \"max_items\" query parameter")
		return
	}
	maxComments, err := intParam(q.Get("max_comments"), h.cfg.MaxComments, 1, maxCommentsParam)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid \"max_comments\" query parameter")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	start := time.Now()
	items, err := controller.RunDeepSearch(ctx, keyword, maxItems, maxComments)
	h.respond(w, keyword, scraper.ModeDeep, start, items, err)
}

// requestContext bounds the request by the clamped "timeout" parameter.
func (h *CloudRunHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeoutMs := defaultTimeoutMs
	if parsed, err := strconv.Atoi(r.URL.Query().Get("timeout")); err == nil {
		timeoutMs = parsed
	}
	if timeoutMs > maxTimeoutMs {
		timeoutMs = maxTimeoutMs
	}
	if timeoutMs < minTimeoutMs {
		timeoutMs = minTimeoutMs
	}
	return context.WithTimeout(r.Context(), time.Duration(timeoutMs)*time.Millisecond)
}

func (h *CloudRunHandler) respond(w http.ResponseWriter, keyword, mode string, start time.Time, items []models.ContentItem, err error) {
	duration := time.Since(start)
	meta := models.Metadata{
		Keyword:    keyword,
		Mode:       mode,
		ItemCount:  len(items),
		ScrapedAt:  time.Now(),
		DurationMs: duration.Milliseconds(),
	}

	var challengeErr *models.ChallengeError
	if errors.As(err, &challengeErr) {
		h.logger.Warn("Search blocked by challenge",
			zap.String("keyword", keyword),
			zap.Int("attempts", challengeErr.Attempts),
			zap.String("indicator", challengeErr.Indicator),
		)
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
		_ = json.NewEncoder(w).Encode(models.BlockedResponse{
			Error:     "Blocked by bot challenge",
			Provider:  "challenge",
			Indicator: challengeErr.Indicator,
			Advice:    "wait before retrying or switch network identity",
			Metadata:  meta,
		})
		return
	}

	if len(items) > 0 && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		h.logger.Warn("Search cut short, serving partial result",
			zap.String("keyword", keyword),
			zap.String("mode", mode),
			zap.Int("items", len(items)),
			zap.Duration("elapsed", duration),
			zap.Error(err),
		)
		meta.Partial = true
		err = nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.Error("Search timed out", zap.String("keyword", keyword), zap.Duration("elapsed", duration))
		h.errorResponse(w, http.StatusGatewayTimeout, "Search took too long")
		return
	}

	if err != nil {
		h.logger.Error("Search failed",
			zap.String("keyword", keyword),
			zap.String("mode", mode),
			zap.String("error_type", fmt.Sprintf("%T", err)),
			zap.Error(err),
		)
		h.errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to search: %s", sanitizeErrorMessage(err)))
		return
	}

	if items == nil {
		items = []models.ContentItem{}
	}
	for _, item := range items {
		if item.CommentCount != nil {
			meta.CommentCount += *item.CommentCount
		}
	}
	h.logger.Info("Search served", zap.String("keyword", keyword), zap.Int("items", len(items)), zap.Duration("elapsed", duration))
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(models.SearchResponse{Items: items, Metadata: meta})
}

// intParam parses an optional integer parameter and clamps it to [lo, hi].
func intParam(raw string, def, lo, hi int) (int, error) {
	v := def
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, err
		}
		v = parsed
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v, nil
}

// sanitizeErrorMessage sanitizes error messages for public responses
// Truncates long messages, removes sensitive info, but keeps enough detail for debugging
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}

	errorMsg := err.Error()

	verboseErrors := os.Getenv("VERBOSE_ERRORS") == "true" || os.Getenv("DEBUG") == "true"
	if verboseErrors {
		if len(errorMsg) > 500 {
			return errorMsg[:500] + "..."
		}
		return errorMsg
	}

	// Remove potential sensitive paths
	errorMsg = strings.ReplaceAll(errorMsg, "/app/", "")
	errorMsg = strings.ReplaceAll(errorMsg, "/tmp/", "")

	var launchErr *models.LaunchError
	if errors.As(err, &launchErr) {
		return "browser unavailable: could not start a browser session"
	}
	var navErr *models.NavigationError
	if errors.As(err, &navErr) {
		return "navigation failed: search page did not load"
	}
	if strings.Contains(errorMsg, "context deadline exceeded") || strings.Contains(errorMsg, "timeout") {
		return "timeout: request took too long"
	}
	if strings.Contains(errorMsg, "network") || strings.Contains(errorMsg, "connection") || strings.Contains(errorMsg, "net::ERR_") {
		return "network error: could not connect to target site"
	}

	if len(errorMsg) > 200 {
		return errorMsg[:200] + "..."
	}
	return errorMsg
}

// errorResponse creates an error response
func (h *CloudRunHandler) errorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}
