package response

import (
	"time"

	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/model"
	"github.com/mcoot/boardgame-groups/internal/services/users"
)

// User represents a user profile in API responses. Email is only set on the
// caller's own profile.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Image     string    `json:"image"`
	Confirmed bool      `json:"confirmed"`
	Groups    []string  `json:"groups"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromModel converts a model.User to a public profile
func UserFromModel(u *model.User) User {
	groups := make([]string, len(u.Groups))
	for i, g := range u.Groups {
		groups[i] = string(g)
	}
	return User{
		ID:        string(u.ID),
		Username:  u.Username,
		Image:     u.AvatarURL(),
		Confirmed: u.Confirmed,
		Groups:    groups,
		CreatedAt: u.CreatedAt,
	}
}

// OwnUserFromModel converts a model.User to the owner's view of their profile
func OwnUserFromModel(u *model.User) User {
	resp := UserFromModel(u)
	resp.Email = u.Email
	return resp
}

// UsersFromModel converts a list of users to public profiles
func UsersFromModel(us []*model.User) []User {
	resp := make([]User, len(us))
	for i, u := range us {
		resp[i] = UserFromModel(u)
	}
	return resp
}

// AuthResponse is the response for register and login
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *users.Session) AuthResponse {
	return AuthResponse{
		User:  OwnUserFromModel(s.User),
		Token: s.Token,
	}
}

// DeleteUserResponse reports what happened to the caller's groups
type DeleteUserResponse struct {
	LeftGroups    []string `json:"left_groups"`
	DeletedGroups []string `json:"deleted_groups"`
}

// Member represents a group member
type Member struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Owner    bool      `json:"owner"`
	JoinedAt time.Time `json:"joined_at"`
}

// RosterGame represents a game in a group's roster
type RosterGame struct {
	model.GameDetails
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Group represents a group in API responses
type Group struct {
	ID          string       `json:"id"`
	Identifier  string       `json:"identifier"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Owners      []string     `json:"owners"`
	Members     []Member     `json:"members"`
	Games       []RosterGame `json:"games"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// GroupFromModel converts a model.Group
func GroupFromModel(g *model.Group) Group {
	members := make([]Member, len(g.Members))
	for i, m := range g.Members {
		members[i] = Member{
			UserID:   string(m.UserID),
			Username: m.Username,
			Owner:    g.IsOwner(m.Username),
			JoinedAt: m.JoinedAt,
		}
	}

	games := make([]RosterGame, len(g.Games))
	for i, gg := range g.Games {
		games[i] = RosterGame{GameDetails: gg.GameDetails, AddedBy: gg.AddedBy, AddedAt: gg.AddedAt}
	}

	owners := make([]string, len(g.Owners))
	copy(owners, g.Owners)

	return Group{
		ID:          string(g.ID),
		Identifier:  g.Identifier,
		DisplayName: g.DisplayName,
		Description: g.Description,
		Owners:      owners,
		Members:     members,
		Games:       games,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// GroupSummary is the short form used in group listings
type GroupSummary struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Members     int    `json:"members"`
	Owner       bool   `json:"owner"`
}

// GroupSummariesFromModel converts groups as seen by username
func GroupSummariesFromModel(gs []*model.Group, username string) []GroupSummary {
	resp := make([]GroupSummary, len(gs))
	for i, g := range gs {
		resp[i] = GroupSummary{
			ID:          string(g.ID),
			Identifier:  g.Identifier,
			DisplayName: g.DisplayName,
			Members:     len(g.Members),
			Owner:       g.IsOwner(username),
		}
	}
	return resp
}

// Game represents a catalog game
type Game struct {
	ID string `json:"id,omitempty"`
	model.GameDetails
	Source     string     `json:"source"`
	ExternalID string     `json:"external_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// GameFromModel converts a model.Game. Games fetched from BoardGameGeek but
// not stored have no id or creation time.
func GameFromModel(g *model.Game) Game {
	resp := Game{
		ID:          string(g.ID),
		GameDetails: g.GameDetails,
		Source:      string(g.Source),
		ExternalID:  g.ExternalID,
	}
	if !g.CreatedAt.IsZero() {
		t := g.CreatedAt
		resp.CreatedAt = &t
	}
	return resp
}

// GamesFromModel converts a list of catalog games
func GamesFromModel(gs []*model.Game) []Game {
	resp := make([]Game, len(gs))
	for i, g := range gs {
		resp[i] = GameFromModel(g)
	}
	return resp
}

// SearchResult is a BoardGameGeek search hit
type SearchResult = bgg.SearchResult

// Play represents a recorded play
type Play struct {
	ID         string               `json:"id"`
	GroupID    string               `json:"group_id"`
	Game       string               `json:"game"`
	Players    []model.PlayerResult `json:"players"`
	RecordedBy string               `json:"recorded_by"`
	PlayedAt   time.Time            `json:"played_at"`
}

// PlayFromModel converts a model.Play
func PlayFromModel(p *model.Play) Play {
	return Play{
		ID:         string(p.ID),
		GroupID:    string(p.GroupID),
		Game:       p.Game,
		Players:    p.Players,
		RecordedBy: p.RecordedBy,
		PlayedAt:   p.PlayedAt,
	}
}

// PlaysFromModel converts a list of plays
func PlaysFromModel(ps []*model.Play) []Play {
	resp := make([]Play, len(ps))
	for i, p := range ps {
		resp[i] = PlayFromModel(p)
	}
	return resp
}

// Stats is the per-member, per-game summary for a group
type Stats struct {
	Group string                  `json:"group"`
	Stats []model.MemberGameStats `json:"stats"`
}
