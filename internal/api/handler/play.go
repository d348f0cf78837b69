package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/boardgame-groups/internal/api/middleware"
	"github.com/mcoot/boardgame-groups/internal/api/request"
	"github.com/mcoot/boardgame-groups/internal/api/response"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/services/plays"
)

// PlayHandler handles play ledger endpoints
type PlayHandler struct {
	playService *plays.Service
}

// NewPlayHandler creates a new play handler
func NewPlayHandler(playService *plays.Service) *PlayHandler {
	return &PlayHandler{
		playService: playService,
	}
}

// Record handles POST /api/v1/plays
func (h *PlayHandler) Record(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.RecordPlayRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	if strings.TrimSpace(req.Group) == "" {
		WriteError(w, NewInvalidRequestError("group is required"))
		return
	}
	if strings.TrimSpace(req.Game) == "" {
		WriteError(w, NewInvalidRequestError("game is required"))
		return
	}

	play, err := h.playService.Record(r.Context(), user, plays.RecordRequest{
		Group:    req.Group,
		Game:     req.Game,
		Players:  req.Results(),
		PlayedAt: req.PlayedAt,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.PlayFromModel(play), "groups", string(play.GroupID), "plays")
}

// ListForGroup handles GET /api/v1/plays/{groupIdent}
func (h *PlayHandler) ListForGroup(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	list, err := h.playService.ListForGroup(r.Context(), mux.Vars(r)["groupIdent"], user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlaysFromModel(list))
}

// Delete handles DELETE /api/v1/plays/{playId}
func (h *PlayHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	if err := h.playService.Delete(r.Context(), model.PlayID(mux.Vars(r)["playId"]), user); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}
