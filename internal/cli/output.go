package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case []User:
		for _, u := range v {
			fmt.Fprintf(o.w, "%s (%s)\n", u.Username, u.ID)
		}
	case AuthResult:
		o.printUser(v.User)
		fmt.Fprintf(o.w, "Token: %s\n", v.Token)
	case DeleteUserResult:
		fmt.Fprintln(o.w, "Account deleted")
		if len(v.LeftGroups) > 0 {
			fmt.Fprintf(o.w, "Left groups: %s\n", strings.Join(v.LeftGroups, ", "))
		}
		if len(v.DeletedGroups) > 0 {
			fmt.Fprintf(o.w, "Deleted groups: %s\n", strings.Join(v.DeletedGroups, ", "))
		}
	case Group:
		o.printGroup(v)
	case []GroupSummary:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "No groups")
		}
		for _, g := range v {
			ownerStr := ""
			if g.Owner {
				ownerStr = " [owner]"
			}
			fmt.Fprintf(o.w, "%s - %s (%d members)%s\n", g.Identifier, g.DisplayName, g.Members, ownerStr)
		}
	case Game:
		o.printGame(v)
	case []Game:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "No games")
		}
		for _, g := range v {
			fmt.Fprintf(o.w, "%s%s\n", g.Name, playerRange(g.MinPlayers, g.MaxPlayers))
		}
	case []SearchResult:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "No results")
		}
		for _, r := range v {
			year := ""
			if r.YearPublished > 0 {
				year = fmt.Sprintf(" (%d)", r.YearPublished)
			}
			fmt.Fprintf(o.w, "%s%s [bgg %s]\n", r.Name, year, r.ID)
		}
	case Play:
		o.printPlay(v)
	case []Play:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "No plays")
		}
		for _, p := range v {
			o.printPlay(p)
		}
	case Stats:
		o.printStats(v)
	case HealthResult:
		fmt.Fprintf(o.w, "%s is %s (%s)\n", v.Server, v.Status, v.Latency)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Image     string    `json:"image"`
	Confirmed bool      `json:"confirmed"`
	Groups    []string  `json:"groups"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResult combines user and token
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// DeleteUserResult lists the groups an account deletion touched
type DeleteUserResult struct {
	LeftGroups    []string `json:"left_groups"`
	DeletedGroups []string `json:"deleted_groups"`
}

// Member response type
type Member struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Owner    bool      `json:"owner"`
	JoinedAt time.Time `json:"joined_at"`
}

// GameDetails are the descriptive fields shared by catalog and roster games
type GameDetails struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Image       string `json:"image,omitempty"`
	MinPlayers  int    `json:"min_players,omitempty"`
	MaxPlayers  int    `json:"max_players,omitempty"`
	PlayingTime int    `json:"playing_time,omitempty"`
}

// RosterGame response type
type RosterGame struct {
	GameDetails
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Group response type
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

// GroupSummary response type
type GroupSummary struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Members     int    `json:"members"`
	Owner       bool   `json:"owner"`
}

// Game response type
type Game struct {
	ID string `json:"id,omitempty"`
	GameDetails
	Source     string     `json:"source"`
	ExternalID string     `json:"external_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// SearchResult is one BoardGameGeek search hit
type SearchResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	YearPublished int    `json:"year_published,omitempty"`
}

// PlayerResult is one player's outcome in a play
type PlayerResult struct {
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Placement int    `json:"placement"`
}

// Play response type
type Play struct {
	ID         string         `json:"id"`
	GroupID    string         `json:"group_id"`
	Game       string         `json:"game"`
	Players    []PlayerResult `json:"players"`
	RecordedBy string         `json:"recorded_by"`
	PlayedAt   time.Time      `json:"played_at"`
}

// MemberGameStats is one member's record for one game
type MemberGameStats struct {
	Username string `json:"username"`
	Game     string `json:"game"`
	Plays    int    `json:"plays"`
	Wins     int    `json:"wins"`
}

// Stats response type
type Stats struct {
	Group string            `json:"group"`
	Stats []MemberGameStats `json:"stats"`
}

// HealthResult is the health response plus what the CLI measured
type HealthResult struct {
	Status  string `json:"status"`
	Server  string `json:"server"`
	Latency string `json:"latency"`
}

func (o *Output) printUser(u User) {
	fmt.Fprintf(o.w, "User: %s (%s)\n", u.Username, u.ID)
	if u.Email != "" {
		confirmed := "unconfirmed"
		if u.Confirmed {
			confirmed = "confirmed"
		}
		fmt.Fprintf(o.w, "Email: %s (%s)\n", u.Email, confirmed)
	}
	if u.Image != "" {
		fmt.Fprintf(o.w, "Image: %s\n", u.Image)
	}
	fmt.Fprintf(o.w, "Groups: %d\n", len(u.Groups))
}

func (o *Output) printGroup(g Group) {
	fmt.Fprintf(o.w, "Group: %s (%s)\n", g.Identifier, g.ID)
	if g.DisplayName != "" {
		fmt.Fprintf(o.w, "Name: %s\n", g.DisplayName)
	}
	if g.Description != "" {
		fmt.Fprintf(o.w, "Description: %s\n", g.Description)
	}
	fmt.Fprintf(o.w, "Members (%d):\n", len(g.Members))
	for _, m := range g.Members {
		ownerStr := ""
		if m.Owner {
			ownerStr = " [owner]"
		}
		fmt.Fprintf(o.w, "  - %s%s\n", m.Username, ownerStr)
	}
	fmt.Fprintf(o.w, "Games (%d):\n", len(g.Games))
	for _, game := range g.Games {
		fmt.Fprintf(o.w, "  - %s%s\n", game.Name, playerRange(game.MinPlayers, game.MaxPlayers))
	}
}

func (o *Output) printGame(g Game) {
	fmt.Fprintf(o.w, "Game: %s\n", g.Name)
	if g.ID != "" {
		fmt.Fprintf(o.w, "ID: %s\n", g.ID)
	}
	fmt.Fprintf(o.w, "Source: %s\n", g.Source)
	if g.ExternalID != "" {
		fmt.Fprintf(o.w, "BoardGameGeek ID: %s\n", g.ExternalID)
	}
	if r := playerRange(g.MinPlayers, g.MaxPlayers); r != "" {
		fmt.Fprintf(o.w, "Players:%s\n", r)
	}
	if g.PlayingTime > 0 {
		fmt.Fprintf(o.w, "Playing time: %d min\n", g.PlayingTime)
	}
	if g.Description != "" {
		fmt.Fprintf(o.w, "\n%s\n", g.Description)
	}
}

func (o *Output) printPlay(p Play) {
	fmt.Fprintf(o.w, "[%s] %s - %s (recorded by %s)\n",
		p.PlayedAt.Format("2006-01-02 15:04"), p.Game, p.ID, p.RecordedBy)
	for _, r := range p.Players {
		place := ""
		if r.Placement > 0 {
			place = fmt.Sprintf("#%d ", r.Placement)
		}
		fmt.Fprintf(o.w, "  %s%s: %d\n", place, r.Username, r.Score)
	}
}

func (o *Output) printStats(s Stats) {
	fmt.Fprintf(o.w, "Stats for %s:\n", s.Group)
	if len(s.Stats) == 0 {
		fmt.Fprintln(o.w, "  No plays recorded")
		return
	}
	for _, st := range s.Stats {
		fmt.Fprintf(o.w, "  %-16s %-24s %3d plays %3d wins\n", st.Username, st.Game, st.Plays, st.Wins)
	}
}

func playerRange(lo, hi int) string {
	switch {
	case lo > 0 && hi > 0 && lo != hi:
		return fmt.Sprintf(" (%d-%d players)", lo, hi)
	case lo > 0:
		return fmt.Sprintf(" (%d players)", lo)
	case hi > 0:
		return fmt.Sprintf(" (up to %d players)", hi)
	}
	return ""
}
