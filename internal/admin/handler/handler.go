// Package handler implements the admin HTTP endpoints: the kitchen-sink
// dashboard and its AJAX actions, reference lookups, directive previews,
// public page rendering, and API key management.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	adminmw "github.com/Adithya-Monish-Kumar-K/block-inventory/internal/admin/middleware"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/nonce"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/directive"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/kitchensink"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/render"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
)

// maxNonceActions bounds how many tokens one /admin/nonces call may issue.
const maxNonceActions = 10

// Inventory is what the handlers need from the inventory service.
type Inventory interface {
	UsageChunk(ctx context.Context, offset, limit int) (inventory.ChunkResult, error)
	ExportUsage(ctx context.Context) (*inventory.ExportResult, error)
	BuildReferenceIndex(ctx context.Context, fragmentID content.ItemID) ([]content.Ref, error)
	Item(ctx context.Context, id content.ItemID) (*content.Item, error)
}

// ReportBuilder computes kitchen-sink reports.
type ReportBuilder interface {
	Build(ctx context.Context, sections kitchensink.Sections) (*kitchensink.Report, error)
}

// KeyManager manages stored API keys. It is optional; without it the key
// routes are not registered.
type KeyManager interface {
	CreateKey(ctx context.Context, name string, capabilities []string, rateLimit int, expiresAt *time.Time) (string, error)
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
	RevokeKey(ctx context.Context, id string) error
}

// Config holds presentation settings.
type Config struct {
	ChunkSize int
	AjaxBase  string
}

// Handler implements the admin endpoints.
type Handler struct {
	inv        Inventory
	sink       ReportBuilder
	directives *directive.Registry
	render     *render.Renderer
	nonces     nonce.Store
	keys       KeyManager
	cfg        Config
	logger     *slog.Logger
}

// New creates the admin Handler. keys may be nil.
func New(cfg Config, inv Inventory, sink ReportBuilder, directives *directive.Registry, r *render.Renderer, nonces nonce.Store, keys KeyManager) *Handler {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = inventory.DefaultChunkSize
	}
	if cfg.AjaxBase == "" {
		cfg.AjaxBase = adminmw.AJAXPrefix
	}
	return &Handler{
		inv:        inv,
		sink:       sink,
		directives: directives,
		render:     r,
		nonces:     nonces,
		keys:       keys,
		cfg:        cfg,
		logger:     slog.Default().With("component", "admin-handler"),
	}
}

// ManagesKeys reports whether key management routes are available.
func (h *Handler) ManagesKeys() bool { return h.keys != nil }

// ---------- Public ----------

// Health returns the service's health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "block-inventory"})
}

// Page renders a published item's body with directives expanded.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.inv.Item(r.Context(), id)
	if err == nil && (item.Status != content.StatusPublish || item.ContentType == content.TypeFragment) {
		err = apperrors.ErrNotFound
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := h.directives.Expand(r.Context(), item.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeHTML(w, body)
}

// ---------- Dashboard ----------

// KitchenSink renders the admin dashboard. Usage buckets are fetched by the
// page in chunks with the nonces embedded here.
func (h *Handler) KitchenSink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := keySubject(ctx)
	blocksNonce, err := h.nonces.Issue(ctx, nonce.ActionBlocks, subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	exportNonce, err := h.nonces.Issue(ctx, nonce.ActionExport, subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.sink.Build(ctx, kitchensink.AllSections())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = h.render.Dashboard(w, render.Page{
		Report:      report,
		AjaxBase:    h.cfg.AjaxBase,
		BlocksNonce: blocksNonce,
		ExportNonce: exportNonce,
		ChunkSize:   h.cfg.ChunkSize,
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to render dashboard", "error", err)
	}
}

// Nonces issues one token per requested action for the calling key.
func (h *Handler) Nonces(w http.ResponseWriter, r *http.Request) {
	actions := r.URL.Query()["action"]
	if len(actions) == 0 || len(actions) > maxNonceActions {
		h.writeError(w, http.StatusBadRequest, "between 1 and 10 action parameters are required")
		return
	}
	subject := keySubject(r.Context())
	out := make(map[string]string, len(actions))
	for _, action := range actions {
		action = strings.TrimSpace(action)
		if !nonce.ValidAction(action) {
			h.writeError(w, http.StatusBadRequest, "action must be lowercase letters and underscores")
			return
		}
		token, err := h.nonces.Issue(r.Context(), action, subject)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out[action] = token
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"nonces": out})
}

// ---------- AJAX ----------

// LoadBlocksChunk returns one rendered window of the usage index.
func (h *Handler) LoadBlocksChunk(w http.ResponseWriter, r *http.Request) {
	if !h.checkNonce(w, r, nonce.ActionBlocks) {
		return
	}
	offset := formInt(r, "offset", 0)
	limit := formInt(r, "limit", h.cfg.ChunkSize)

	res, err := h.inv.UsageChunk(r.Context(), offset, limit)
	if err != nil {
		h.ajaxFail(w, r, err, "Failed to load blocks")
		return
	}
	html, err := h.render.UsageChunk(res.Buckets)
	if err != nil {
		h.ajaxFail(w, r, err, "Failed to load blocks")
		return
	}
	h.writeAJAX(w, map[string]any{
		"html":     html,
		"total":    res.Total,
		"loaded":   res.Loaded,
		"has_more": res.HasMore,
	})
}

// ExportBlocksCSV returns the usage index as a CSV document.
func (h *Handler) ExportBlocksCSV(w http.ResponseWriter, r *http.Request) {
	if !h.checkNonce(w, r, nonce.ActionExport) {
		return
	}
	res, err := h.inv.ExportUsage(r.Context())
	if errors.Is(err, apperrors.ErrEmptyResult) {
		adminmw.WriteAJAXFailure(w, http.StatusOK, apperrors.Message(err))
		return
	}
	if err != nil {
		h.ajaxFail(w, r, err, "Failed to export blocks")
		return
	}
	h.writeAJAX(w, map[string]string{"csv": res.CSV, "filename": res.Filename})
}

// ---------- Inventory lookups ----------

// References lists the items referencing a fragment.
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	refs, err := h.inv.BuildReferenceIndex(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if refs == nil {
		refs = []content.Ref{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"fragment_id": id,
		"references":  refs,
		"count":       len(refs),
	})
}

// DirectivePreview renders a directive with attributes taken from the query.
func (h *Handler) DirectivePreview(w http.ResponseWriter, r *http.Request) {
	attrs := directive.Attrs{}
	for k, v := range r.URL.Query() {
		if k == "api_key" || len(v) == 0 {
			continue
		}
		attrs[strings.ToLower(k)] = v[0]
	}
	html, err := h.directives.Render(r.Context(), r.PathValue("name"), attrs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeHTML(w, html)
}

// ---------- API keys ----------

// CreateAPIKey creates a new API key and returns the raw key (shown once).
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		Capabilities []string `json:"capabilities"`
		RateLimit    int      `json:"rate_limit"`
		ExpiresIn    string   `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := h.keys.CreateKey(r.Context(), req.Name, req.Capabilities, req.RateLimit, expiresAt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
		"name":    req.Name,
		"message": "store this key securely, it cannot be retrieved again",
	})
}

// ListAPIKeys returns all active API keys (without hashes).
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if keys == nil {
		keys = []apikey.KeyInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// RevokeAPIKey deactivates a key and drops the nonces issued to it.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.keys.RevokeKey(r.Context(), id)
	if errors.Is(err, apikey.ErrInvalidKey) {
		h.writeError(w, http.StatusNotFound, "api key not found")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.nonces.RevokeAll(r.Context(), id); err != nil {
		logger.FromContext(r.Context()).Warn("failed to revoke nonces", "key_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Helpers ----------

// checkNonce verifies the request's nonce for action. On failure it writes
// the unauthorized envelope and returns false.
func (h *Handler) checkNonce(w http.ResponseWriter, r *http.Request, action string) bool {
	token := r.FormValue("nonce")
	ok, err := h.nonces.Verify(r.Context(), action, keySubject(r.Context()), token)
	if err != nil {
		logger.FromContext(r.Context()).Error("nonce check failed", "action", action, "error", err)
	}
	if !ok {
		adminmw.WriteAJAXFailure(w, http.StatusOK, adminmw.UnauthorizedMessage)
		return false
	}
	return true
}

func keySubject(ctx context.Context) string {
	if info := adminmw.GetKeyInfo(ctx); info != nil {
		return info.ID
	}
	return "anonymous"
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (content.ItemID, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return content.ItemID(id), true
}

func formInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(name)))
	if err != nil {
		return def
	}
	return v
}

// fail maps err to a JSON error response. Server errors are logged and
// reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, apperrors.Message(err))
}

func (h *Handler) ajaxFail(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger.FromContext(r.Context()).Error("ajax action failed", "path", r.URL.Path, "error", err)
	adminmw.WriteAJAXFailure(w, apperrors.HTTPStatusCode(err), message)
}

func (h *Handler) writeAJAX(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (h *Handler) writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(html)); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
