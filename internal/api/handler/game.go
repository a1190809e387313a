package handler

import (
	"net/http"

	"github.com/mcoot/linkguard/internal/api/request"
	"github.com/mcoot/linkguard/internal/api/response"
	"github.com/mcoot/linkguard/internal/bridge"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/login"
)

// GameHandler serves the game server bridge
type GameHandler struct {
	login      *login.Service
	hub        *bridge.Hub
	presence   *bridge.Presence
	dispatcher *bridge.Dispatcher
}

// NewGameHandler creates a new game bridge handler
func NewGameHandler(login *login.Service, hub *bridge.Hub, presence *bridge.Presence, dispatcher *bridge.Dispatcher) *GameHandler {
	return &GameHandler{
		login:      login,
		hub:        hub,
		presence:   presence,
		dispatcher: dispatcher,
	}
}

// PreLogin handles POST /api/v1/game/prelogin
func (h *GameHandler) PreLogin(w http.ResponseWriter, r *http.Request) {
	var req request.PreLoginRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	address, err := addressParam(req.Address)
	if err != nil {
		WriteError(w, err)
		return
	}

	remaining, msg, err := h.login.PreLogin(r.Context(), address)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PreLoginResponse{
		Banned:           remaining > 0,
		RemainingSeconds: response.Seconds(remaining),
		Message:          msg,
	})
}

// Join handles POST /api/v1/game/join. Game-facing intents are returned in
// the response; chat-facing ones are dispatched.
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	playerID, err := playerParam(req.PlayerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	address, err := addressParam(req.Address)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.Name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}
	kind := model.ParsePlatformKind(req.PlatformKind)

	h.presence.Join(playerID, kind)
	res, err := h.login.Join(r.Context(), login.JoinRequest{
		PlayerID:     playerID,
		Name:         req.Name,
		Address:      address,
		PlatformKind: kind,
	})
	if err != nil {
		h.presence.Leave(playerID)
		WriteError(w, err)
		return
	}
	if res.Outcome == login.JoinBanned {
		h.presence.Leave(playerID)
	}

	var chat []login.Intent
	for _, in := range res.Intents {
		if in.ForChat() {
			chat = append(chat, in)
		}
	}
	h.dispatcher.Dispatch(r.Context(), chat)

	response.JSON(w, http.StatusOK, response.JoinResponseFromResult(res))
}

// Leave handles POST /api/v1/game/leave
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req request.LeaveRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	playerID, err := playerParam(req.PlayerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	kind := model.ParsePlatformKind(req.PlatformKind)
	if known, ok := h.presence.Kind(playerID); ok && kind == model.PlatformUnknown {
		kind = known
	}
	h.presence.Leave(playerID)
	h.login.Leave(r.Context(), playerID, kind)
	response.NoContent(w)
}

// Allowed handles POST /api/v1/game/allowed
func (h *GameHandler) Allowed(w http.ResponseWriter, r *http.Request) {
	var req request.AllowedRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	playerID, err := playerParam(req.PlayerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	address, err := addressParam(req.Address)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AllowedResponse{
		Allowed: h.login.IsActionAllowed(r.Context(), playerID, address),
	})
}

// Events handles GET /api/v1/game/events, streaming intents over SSE
func (h *GameHandler) Events(w http.ResponseWriter, r *http.Request) {
	server := r.URL.Query().Get("server")
	if server == "" {
		server = r.RemoteAddr
	}
	bridge.ServeSSE(w, r, h.hub, server)
}
