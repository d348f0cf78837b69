package request

import (
	"strings"
	"time"

	"github.com/mcoot/boardgame-groups/internal/model"
)

// RegisterRequest is the request body for registering a user
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in. Login may be a username
// or an email address.
type LoginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity returns whichever login field was supplied
func (r LoginRequest) Identity() string {
	switch {
	case r.Login != "":
		return r.Login
	case r.Username != "":
		return r.Username
	}
	return r.Email
}

// UpdateUserRequest is the request body for updating the caller's profile.
// Absent fields are left unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// ToModel converts the request to a model.UserUpdate
func (r UpdateUserRequest) ToModel() model.UserUpdate {
	return model.UserUpdate{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		Image:    r.Image,
	}
}

// CreateGroupRequest is the request body for creating a group
type CreateGroupRequest struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpdateGroupRequest is the request body for updating a group
type UpdateGroupRequest struct {
	Identifier  *string `json:"identifier,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ToModel converts the request to a model.GroupUpdate
func (r UpdateGroupRequest) ToModel() model.GroupUpdate {
	return model.GroupUpdate{
		Identifier:  r.Identifier,
		DisplayName: r.DisplayName,
		Description: r.Description,
	}
}

// UsernameRequest names a user to add to or remove from a group role
type UsernameRequest struct {
	Username string `json:"username"`
}

// GameNameRequest names a roster game to remove. Older clients send it as
// "game".
type GameNameRequest struct {
	Name string `json:"name"`
	Game string `json:"game"`
}

// GameName returns whichever of the two fields was set
func (r GameNameRequest) GameName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return strings.TrimSpace(r.Game)
}

// GameRequest is the request body for adding a game to the catalog or a
// group roster
type GameRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Image       string `json:"image,omitempty"`
	MinPlayers  int    `json:"min_players,omitempty"`
	MaxPlayers  int    `json:"max_players,omitempty"`
	PlayingTime int    `json:"playing_time,omitempty"`
}

// ToModel converts the request to model.GameDetails
func (r GameRequest) ToModel() model.GameDetails {
	return model.GameDetails{
		Name:        r.Name,
		Description: r.Description,
		Thumbnail:   r.Thumbnail,
		Image:       r.Image,
		MinPlayers:  r.MinPlayers,
		MaxPlayers:  r.MaxPlayers,
		PlayingTime: r.PlayingTime,
	}
}

// ImportRequest is the request body for importing a BoardGameGeek game
type ImportRequest struct {
	Name string `json:"name"`
}

// PlayerResult is one player's outcome in a play
type PlayerResult struct {
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Placement int    `json:"placement"`
}

// RecordPlayRequest is the request body for recording a play
type RecordPlayRequest struct {
	Group    string         `json:"group"`
	Game     string         `json:"game"`
	Players  []PlayerResult `json:"players"`
	PlayedAt *time.Time     `json:"played_at,omitempty"`
}

// Results converts the players to model.PlayerResult
func (r RecordPlayRequest) Results() []model.PlayerResult {
	results := make([]model.PlayerResult, len(r.Players))
	for i, p := range r.Players {
		results[i] = model.PlayerResult{Username: p.Username, Score: p.Score, Placement: p.Placement}
	}
	return results
}
