package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/hramba/internal/cloakroom"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/receipt"
)

// ItemsHandler handles intake, return and item lookup endpoints.
type ItemsHandler struct {
	Cloakroom   *cloakroom.Service
	Perms       model.Permissions
	ReceiptSize int
}

type returnRequest struct {
	QRCode string `json:"qr_code"`
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft model.ItemDraft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Cloakroom.AcceptItem(r.Context(), draft, actor(r))
	if err != nil {
		workflowError(w, err, "accept item")
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Return handles POST /api/items/return.
func (h *ItemsHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QRCode == "" {
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid request",
			"fields": []cloakroom.FieldError{{Field: "qr_code", Reason: "is required"}},
		})
		return
	}

	item, err := h.Cloakroom.ReturnItem(r.Context(), req.QRCode, actor(r))
	if err != nil {
		workflowError(w, err, "return item")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// List handles GET /api/items?status=stored|returned. Stored items need
// the accept or return capability, the archive needs view-archive.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var (
		items []model.Item
		err   error
	)
	switch model.ItemStatus(r.URL.Query().Get("status")) {
	case "", model.ItemStatusStored:
		if !h.Perms.Allows(claims.Role, model.CapAccept, model.CapReturn) {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		items, err = h.Cloakroom.ListStoredItems(r.Context())
	case model.ItemStatusReturned:
		if !h.Perms.Allows(claims.Role, model.CapViewArchive) {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		items, err = h.Cloakroom.ListReturnedItems(r.Context())
	default:
		jsonError(w, http.StatusBadRequest, "status must be stored or returned")
		return
	}
	if err != nil {
		workflowError(w, err, "list items")
		return
	}

	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{code}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Cloakroom.FindItem(r.Context(), r.PathValue("code"))
	if err != nil {
		workflowError(w, err, "get item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Receipt handles GET /api/items/{code}/receipt.png.
func (h *ItemsHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	size := h.ReceiptSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < receipt.MinSize || n > receipt.MaxSize {
			jsonError(w, http.StatusBadRequest, "invalid receipt size")
			return
		}
		size = n
	}

	item, err := h.Cloakroom.FindItem(r.Context(), r.PathValue("code"))
	if err != nil {
		workflowError(w, err, "get item")
		return
	}

	data, err := receipt.Render(item, size)
	if err != nil {
		slog.Error("failed to render receipt", "code", item.QRCode, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render receipt")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Occupancy handles GET /api/occupancy.
func (h *ItemsHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	occ, err := h.Cloakroom.Occupancy(r.Context())
	if err != nil {
		workflowError(w, err, "read occupancy")
		return
	}
	jsonResponse(w, http.StatusOK, occ)
}
