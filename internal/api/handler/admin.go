package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/linkguard/internal/api/request"
	"github.com/mcoot/linkguard/internal/api/response"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/admin"
)

// AdminHandler serves operator endpoints
type AdminHandler struct {
	admin *admin.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *admin.Service) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// GrantBypass handles POST /api/v1/admin/bypass/{player}
func (h *AdminHandler) GrantBypass(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerParam(mux.Vars(r)["player"])
	if err != nil {
		WriteError(w, err)
		return
	}
	h.admin.GrantBypass(playerID)
	response.JSON(w, http.StatusOK, response.BypassResponse{PlayerID: string(playerID), Active: true, Changed: true})
}

// RevokeBypass handles DELETE /api/v1/admin/bypass/{player}
func (h *AdminHandler) RevokeBypass(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerParam(mux.Vars(r)["player"])
	if err != nil {
		WriteError(w, err)
		return
	}
	revoked := h.admin.RevokeBypass(playerID)
	response.JSON(w, http.StatusOK, response.BypassResponse{PlayerID: string(playerID), Active: false, Changed: revoked})
}

// Forgive handles POST /api/v1/admin/forgive/{address}
func (h *AdminHandler) Forgive(w http.ResponseWriter, r *http.Request) {
	address, err := addressParam(mux.Vars(r)["address"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.admin.Forgive(r.Context(), address); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// Link handles POST /api/v1/admin/links
func (h *AdminHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req request.LinkRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	playerID, err := playerParam(req.PlayerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.ChatUserID == "" {
		WriteError(w, NewInvalidRequestError("chat_user_id is required"))
		return
	}
	if err := h.admin.Link(r.Context(), model.ChatUserID(req.ChatUserID), playerID); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// UnlinkPlayer handles DELETE /api/v1/admin/links/player/{player}
func (h *AdminHandler) UnlinkPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerParam(mux.Vars(r)["player"])
	if err != nil {
		WriteError(w, err)
		return
	}
	n, err := h.admin.UnlinkPlayer(r.Context(), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UnlinkResponse{Removed: n})
}

// UnlinkChatUser handles DELETE /api/v1/admin/links/chat/{chat}
func (h *AdminHandler) UnlinkChatUser(w http.ResponseWriter, r *http.Request) {
	n, err := h.admin.UnlinkChatUser(r.Context(), model.ChatUserID(mux.Vars(r)["chat"]))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UnlinkResponse{Removed: n})
}

// UnlinkPair handles DELETE /api/v1/admin/links/chat/{chat}/player/{player}
func (h *AdminHandler) UnlinkPair(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	playerID, err := playerParam(vars["player"])
	if err != nil {
		WriteError(w, err)
		return
	}
	n, err := h.admin.UnlinkPair(r.Context(), model.ChatUserID(vars["chat"]), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UnlinkResponse{Removed: n})
}

// ClearPendingLogin handles DELETE /api/v1/admin/sessions/{player}/login
func (h *AdminHandler) ClearPendingLogin(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerParam(mux.Vars(r)["player"])
	if err != nil {
		WriteError(w, err)
		return
	}
	cleared := h.admin.ClearPendingLogin(playerID)
	response.JSON(w, http.StatusOK, response.ClearResponse{PlayerID: string(playerID), Cleared: cleared})
}

// Lookup handles GET /api/v1/admin/lookup/{query}
func (h *AdminHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	result, err := h.admin.Lookup(r.Context(), mux.Vars(r)["query"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Sessions handles GET /api/v1/admin/sessions
func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.admin.ListSessions())
}
