package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/boardgame-groups/internal/api/middleware"
	"github.com/mcoot/boardgame-groups/internal/api/request"
	"github.com/mcoot/boardgame-groups/internal/api/response"
	"github.com/mcoot/boardgame-groups/internal/api/sse"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/services/groups"
	"github.com/mcoot/boardgame-groups/internal/services/plays"
)

// GroupHandler handles group-related endpoints
type GroupHandler struct {
	groupService *groups.Service
	playService  *plays.Service
	hubManager   *sse.HubManager
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groupService *groups.Service, playService *plays.Service, hubManager *sse.HubManager) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		playService:  playService,
		hubManager:   hubManager,
	}
}

func identifier(r *http.Request) string {
	return mux.Vars(r)["identifier"]
}

// Create handles POST /api/v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.CreateGroupRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	if strings.TrimSpace(req.Identifier) == "" {
		WriteError(w, NewInvalidRequestError("identifier is required"))
		return
	}

	group, err := h.groupService.Create(r.Context(), user, groups.CreateRequest{
		Identifier:  req.Identifier,
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.GroupFromModel(group), "groups", group.Identifier)
}

// Get handles GET /api/v1/groups/{identifier}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	group, err := h.groupService.Get(r.Context(), identifier(r), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// Update handles PATCH and PUT /api/v1/groups/{identifier}
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.UpdateGroupRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.groupService.Update(r.Context(), identifier(r), user, req.ToModel())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// Delete handles DELETE /api/v1/groups/{identifier}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	if err := h.groupService.Delete(r.Context(), identifier(r), user); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// readUsername decodes a {username} body, falling back to the {username}
// path variable used by DELETE routes
func readUsername(w http.ResponseWriter, r *http.Request) (string, error) {
	if name := mux.Vars(r)["username"]; name != "" {
		return name, nil
	}
	var req request.UsernameRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Username) == "" {
		return "", NewInvalidRequestError("username is required")
	}
	return req.Username, nil
}

// AddMember handles POST /api/v1/groups/{identifier}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	username, err := readUsername(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.groupService.AddMember(r.Context(), identifier(r), user, username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// RemoveMember handles DELETE /api/v1/groups/{identifier}/members[/{username}]
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	username, err := readUsername(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.groupService.RemoveMember(r.Context(), identifier(r), user, username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// AddOwner handles POST /api/v1/groups/{identifier}/owners
func (h *GroupHandler) AddOwner(w http.ResponseWriter, r *http.Request) {
	h.setOwner(w, r, true)
}

// RemoveOwner handles DELETE /api/v1/groups/{identifier}/owners[/{username}]
func (h *GroupHandler) RemoveOwner(w http.ResponseWriter, r *http.Request) {
	h.setOwner(w, r, false)
}

func (h *GroupHandler) setOwner(w http.ResponseWriter, r *http.Request, owner bool) {
	user := middleware.MustGetUser(r.Context())

	username, err := readUsername(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.groupService.SetOwner(r.Context(), identifier(r), user, username, owner)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// AddGame handles POST /api/v1/groups/{identifier}/games
func (h *GroupHandler) AddGame(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.GameRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.groupService.AddGame(r.Context(), identifier(r), user, req.ToModel())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// readGameName takes the {name} path variable, or a {name} or {game} body
func readGameName(w http.ResponseWriter, r *http.Request) (string, error) {
	if name := mux.Vars(r)["name"]; name != "" {
		return name, nil
	}
	var req request.GameNameRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		return "", err
	}
	if req.GameName() == "" {
		return "", NewInvalidRequestError("game name is required")
	}
	return req.GameName(), nil
}

// RemoveGame handles DELETE /api/v1/groups/{identifier}/games[/{name}]
func (h *GroupHandler) RemoveGame(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	name, err := readGameName(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	group, err := h.groupService.RemoveGame(r.Context(), identifier(r), user, name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupFromModel(group))
}

// Plays handles GET /api/v1/groups/{identifier}/plays
func (h *GroupHandler) Plays(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	list, err := h.playService.ListForGroup(r.Context(), identifier(r), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlaysFromModel(list))
}

// Stats handles GET /api/v1/groups/{identifier}/stats
func (h *GroupHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	stats, err := h.playService.Stats(r.Context(), identifier(r), user)
	if err != nil {
		WriteError(w, err)
		return
	}
	if stats == nil {
		stats = []model.MemberGameStats{}
	}

	response.JSON(w, http.StatusOK, response.Stats{Group: model.NormalizeGroupIdentifier(identifier(r)), Stats: stats})
}

// Events handles GET /api/v1/groups/{identifier}/events
func (h *GroupHandler) Events(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	group, err := h.groupService.Get(r.Context(), identifier(r), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	hub := h.hubManager.GetOrCreateHub(group.ID)
	sse.ServeSSE(w, r, hub, user.ID)
}
