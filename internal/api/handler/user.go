package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/boardgame-groups/internal/api/middleware"
	"github.com/mcoot/boardgame-groups/internal/api/request"
	"github.com/mcoot/boardgame-groups/internal/api/response"
	"github.com/mcoot/boardgame-groups/internal/services/groups"
	"github.com/mcoot/boardgame-groups/internal/services/plays"
	"github.com/mcoot/boardgame-groups/internal/services/users"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	userService  *users.Service
	groupService *groups.Service
	playService  *plays.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *users.Service, groupService *groups.Service, playService *plays.Service) *UserHandler {
	return &UserHandler{
		userService:  userService,
		groupService: groupService,
		playService:  playService,
	}
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.userService.Register(r.Context(), users.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.AuthResponseFromSession(session), "users", "me")
}

// Login handles POST /api/v1/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	login := strings.TrimSpace(req.Identity())
	if login == "" {
		WriteError(w, NewInvalidRequestError("username or email is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.userService.Login(r.Context(), login, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Confirm handles GET /api/v1/users/confirm/{token}
func (h *UserHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Confirm(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// Resend handles POST /api/v1/users/resend/{username}
func (h *UserHandler) Resend(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.ResendConfirmation(r.Context(), mux.Vars(r)["username"]); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.userService.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UsersFromModel(all))
}

// Get handles GET /api/v1/users/{ident}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), mux.Vars(r)["ident"])
	if err != nil {
		WriteError(w, err)
		return
	}

	if caller := middleware.GetUser(r.Context()); caller != nil && caller.ID == user.ID {
		response.JSON(w, http.StatusOK, response.OwnUserFromModel(user))
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	response.JSON(w, http.StatusOK, response.OwnUserFromModel(user))
}

// Update handles PATCH and PUT /api/v1/users[/me]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.UpdateUserRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	updated, err := h.userService.Update(r.Context(), user, req.ToModel())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.OwnUserFromModel(updated))
}

// Delete handles DELETE /api/v1/users[/me]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	removal, err := h.userService.Delete(r.Context(), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.DeleteUserResponse{
		LeftGroups:    make([]string, 0, len(removal.Left)),
		DeletedGroups: make([]string, 0, len(removal.Deleted)),
	}
	for _, g := range removal.Left {
		resp.LeftGroups = append(resp.LeftGroups, g.Identifier)
	}
	for _, id := range removal.Deleted {
		resp.DeletedGroups = append(resp.DeletedGroups, string(id))
	}
	response.JSON(w, http.StatusOK, resp)
}

// Groups handles GET /api/v1/users/me/groups
func (h *UserHandler) Groups(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	list, err := h.groupService.ListForUser(r.Context(), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GroupSummariesFromModel(list, user.Username))
}

// Plays handles GET /api/v1/users/{ident}/plays
func (h *UserHandler) Plays(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), mux.Vars(r)["ident"])
	if err != nil {
		WriteError(w, err)
		return
	}

	list, err := h.playService.ListForUser(r.Context(), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlaysFromModel(list))
}
