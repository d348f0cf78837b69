package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/boardgame-groups/internal/api"
	"github.com/mcoot/boardgame-groups/internal/api/apierr"
	"github.com/mcoot/boardgame-groups/internal/api/response"
	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/factory"
	"github.com/mcoot/boardgame-groups/internal/model"
)

// fakeBGG answers BoardGameGeek lookups from a fixed table
type fakeBGG struct{}

func (fakeBGG) FetchGame(ctx context.Context, name string) (*model.Game, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "catan":
		return &model.Game{
			GameDetails: model.GameDetails{Name: "catan", MinPlayers: 3, MaxPlayers: 4, PlayingTime: 120},
			Source:      model.GameSourceBGG,
			ExternalID:  "13",
		}, nil
	case "broken":
		return nil, fmt.Errorf("%w: status 503", model.ErrExternalLookup)
	}
	return nil, model.ErrGameNotFound
}

func (fakeBGG) Search(ctx context.Context, query string) ([]bgg.SearchResult, error) {
	return []bgg.SearchResult{{ID: "13", Name: "CATAN", YearPublished: 1995}}, nil
}

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	app := factory.NewTestAppWithExternal(fakeBGG{})
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		UserService:    app.UserService,
		GroupService:   app.GroupService,
		CatalogService: app.CatalogService,
		PlayService:    app.PlayService,
		HubManager:     app.HubManager,
		AllowedOrigins: []string{"https://games.example.com"},
	})

	return &testServer{
		handler: router,
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[apierr.ErrorResponse](t, rr)
	assert.NotEmpty(t, resp.Message)
	return resp.Error.Code
}

func register(t *testing.T, ts *testServer, username string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/users", map[string]string{
		"username": username,
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[response.AuthResponse](t, rr).Token
}

func createGroup(t *testing.T, ts *testServer, token, identifier string) response.Group {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/groups", map[string]string{"identifier": identifier}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	group := decode[response.Group](t, rr)
	assert.Equal(t, "/api/v1/groups/"+group.Identifier, rr.Header().Get("Location"))
	return group
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/groups", nil)
	req.Header.Set("Origin", "https://games.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://games.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnmatchedRoutesReturnJSONErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeRouteNotFound, resp.Error.Code)
	assert.Equal(t, "no route for /api/v1/nothing-here", resp.Message)

	rr = ts.request(http.MethodPost, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp = decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeMethodNotAllowed, resp.Error.Code)
	assert.Equal(t, "method POST not allowed", resp.Message)
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/users", map[string]string{
		"username": "Alice",
		"email":    "alice@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, model.DefaultUserImage, resp.User.Image)
	assert.NotEmpty(t, resp.Token)

	// Duplicate username
	rr = ts.request(http.MethodPost, "/api/v1/users", map[string]string{
		"username": "ALICE",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeUsernameTaken, errorCode(t, rr))

	// Login by username and by email
	for _, login := range []string{"alice", "Alice@Example.com"} {
		rr = ts.request(http.MethodPost, "/api/v1/users/login", map[string]string{
			"login":    login,
			"password": "password123",
		}, "")
		assert.Equal(t, http.StatusOK, rr.Code, login)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		body map[string]string
		code string
	}{
		{map[string]string{"username": "al", "password": "password123"}, apierr.CodeInvalidUsername},
		{map[string]string{"username": "alice", "password": "short"}, apierr.CodePasswordTooShort},
		{map[string]string{"username": "alice", "password": "password123", "email": "nope"}, apierr.CodeInvalidEmail},
		{map[string]string{"password": "password123"}, apierr.CodeInvalidRequest},
	}
	for _, tc := range cases {
		rr := ts.request(http.MethodPost, "/api/v1/users", tc.body, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, tc.code, errorCode(t, rr))
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice")

	wrong := ts.request(http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	}, "")
	unknown := ts.request(http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "mallory",
		"password": "password123",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/users/me", "/api/v1/groups/abc123", "/api/v1/plays/abc123"} {
		rr := ts.request(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))
	}

	rr := ts.request(http.MethodGet, "/api/v1/users/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfiles(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/users", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	aliceToken := decode[response.AuthResponse](t, rr).Token
	bobToken := register(t, ts, "bob")

	// Own profile shows email
	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, aliceToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice@example.com", decode[response.User](t, rr).Email)

	rr = ts.request(http.MethodGet, "/api/v1/users/alice", nil, aliceToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice@example.com", decode[response.User](t, rr).Email)

	// Someone else's profile does not
	rr = ts.request(http.MethodGet, "/api/v1/users/alice", nil, bobToken)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decode[response.User](t, rr)
	assert.Empty(t, profile.Email)

	// Lookup by id
	rr = ts.request(http.MethodGet, "/api/v1/users/"+profile.ID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decode[response.User](t, rr).Username)

	rr = ts.request(http.MethodGet, "/api/v1/users", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.User](t, rr), 2)

	rr = ts.request(http.MethodGet, "/api/v1/users/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUserNotFound, errorCode(t, rr))
}

func TestUpdateAndDeleteSelf(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")
	register(t, ts, "bob")

	rr := ts.request(http.MethodPatch, "/api/v1/users", map[string]string{"username": "bob"}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeUsernameTaken, errorCode(t, rr))

	rr = ts.request(http.MethodPut, "/api/v1/users/me", map[string]string{"username": "alicia"}, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "alicia", decode[response.User](t, rr).Username)

	createGroup(t, ts, token, "solo")

	rr = ts.request(http.MethodDelete, "/api/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	deleted := decode[response.DeleteUserResponse](t, rr)
	assert.Len(t, deleted.DeletedGroups, 1)

	// The token no longer resolves to a user
	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestConfirmEmail(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/users", map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.False(t, decode[response.AuthResponse](t, rr).User.Confirmed)

	// Resend replaces the first key
	rr = ts.request(http.MethodPost, "/api/v1/users/resend/carol", nil, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	link := ts.app.MockMailer.Last().Link
	token := link[strings.LastIndex(link, "/")+1:]

	rr = ts.request(http.MethodGet, "/api/v1/users/confirm/token-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/users/confirm/"+token, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.User](t, rr).Confirmed)

	rr = ts.request(http.MethodPost, "/api/v1/users/resend/carol", nil, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyConfirmed, errorCode(t, rr))
}

// Scenario: create, duplicate, and the last-owner guard
func TestGroupOwnershipScenario(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	group := createGroup(t, ts, alice, "abc123")
	assert.Equal(t, []string{"alice"}, group.Owners)
	require.Len(t, group.Members, 1)
	assert.Equal(t, "alice", group.Members[0].Username)
	assert.True(t, group.Members[0].Owner)

	rr := ts.request(http.MethodPost, "/api/v1/groups", map[string]string{"identifier": "ABC123"}, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeIdentifierTaken, errorCode(t, rr))
	assert.Equal(t, model.ErrGroupIdentifierTaken.Error(), decode[apierr.ErrorResponse](t, rr).Message)

	rr = ts.request(http.MethodPost, "/api/v1/groups", map[string]string{"identifier": "no spaces!"}, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeIdentifierInvalid, errorCode(t, rr))

	rr = ts.request(http.MethodDelete, "/api/v1/groups/abc123/members", map[string]string{"username": "alice"}, alice)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// A second member does not lift the last-owner guard
	rr = ts.request(http.MethodPost, "/api/v1/groups/abc123/members", map[string]string{"username": "bob"}, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodDelete, "/api/v1/groups/abc123/members", map[string]string{"username": "alice"}, alice)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeLastOwner, errorCode(t, rr))

	// Only owners manage members
	rr = ts.request(http.MethodPost, "/api/v1/groups/abc123/owners", map[string]string{"username": "bob"}, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotOwner, errorCode(t, rr))

	// A second owner does
	rr = ts.request(http.MethodPost, "/api/v1/groups/abc123/owners", map[string]string{"username": "bob"}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/abc123/members/alice", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	after := decode[response.Group](t, rr)
	assert.Equal(t, []string{"bob"}, after.Owners)

	// Alice is no longer a member, so the group looks missing
	rr = ts.request(http.MethodGet, "/api/v1/groups/abc123", nil, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeGroupNotFound, errorCode(t, rr))
}

func TestGroupVisibleOnlyToMembers(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")
	createGroup(t, ts, alice, "private")

	missing := ts.request(http.MethodGet, "/api/v1/groups/nothere", nil, bob)
	hidden := ts.request(http.MethodGet, "/api/v1/groups/private", nil, bob)

	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusNotFound, hidden.Code)
	assert.Equal(t, errorCode(t, missing), errorCode(t, hidden))
}

func TestGroupUpdateAndDelete(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")
	createGroup(t, ts, alice, "weekly")
	createGroup(t, ts, alice, "monthly")

	rr := ts.request(http.MethodPost, "/api/v1/groups/weekly/members", map[string]string{"username": "bob"}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPatch, "/api/v1/groups/weekly", map[string]string{"identifier": "monthly"}, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.request(http.MethodPatch, "/api/v1/groups/weekly", map[string]string{
		"identifier":   "fortnightly",
		"display_name": "Fortnightly Games",
	}, bob)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[response.Group](t, rr)
	assert.Equal(t, "fortnightly", updated.Identifier)
	assert.Equal(t, "Fortnightly Games", updated.DisplayName)

	rr = ts.request(http.MethodGet, "/api/v1/users/me/groups", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	summaries := decode[[]response.GroupSummary](t, rr)
	require.Len(t, summaries, 1)
	assert.Equal(t, "fortnightly", summaries[0].Identifier)
	assert.False(t, summaries[0].Owner)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/fortnightly", nil, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/fortnightly", nil, alice)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/users/me/groups", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]response.GroupSummary](t, rr))
}

func TestRosterAndPlays(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")
	createGroup(t, ts, alice, "friday")
	rr := ts.request(http.MethodPost, "/api/v1/groups/friday/members", map[string]string{"username": "bob"}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	play := map[string]any{
		"group": "friday",
		"game":  "Azul",
		"players": []map[string]any{
			{"username": "alice", "score": 60, "placement": 1},
			{"username": "bob", "score": 48, "placement": 2},
		},
	}

	// The game must be on the roster first
	rr = ts.request(http.MethodPost, "/api/v1/plays", play, bob)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, apierr.CodeGameNotInGroup, errorCode(t, rr))
	assert.Contains(t, rr.Body.String(), "Azul")

	// Members (not only owners) manage the roster
	rr = ts.request(http.MethodPost, "/api/v1/groups/friday/games", map[string]any{"name": "Azul", "min_players": 2}, bob)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	group := decode[response.Group](t, rr)
	require.Len(t, group.Games, 1)
	assert.Equal(t, "bob", group.Games[0].AddedBy)

	rr = ts.request(http.MethodPost, "/api/v1/groups/friday/games", map[string]any{"name": "azul"}, alice)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeGameAlreadyInRoster, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/plays", play, bob)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	recorded := decode[response.Play](t, rr)
	assert.Equal(t, "bob", recorded.RecordedBy)

	rr = ts.request(http.MethodGet, "/api/v1/plays/friday", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.Play](t, rr), 1)

	rr = ts.request(http.MethodGet, "/api/v1/groups/friday/plays", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.Play](t, rr), 1)

	rr = ts.request(http.MethodGet, "/api/v1/users/bob/plays", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.Play](t, rr), 1)

	rr = ts.request(http.MethodGet, "/api/v1/groups/friday/stats", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[response.Stats](t, rr)
	assert.Equal(t, "friday", stats.Group)
	assert.Equal(t, []model.MemberGameStats{
		{Username: "alice", Game: "Azul", Plays: 1, Wins: 1},
		{Username: "bob", Game: "Azul", Plays: 1, Wins: 0},
	}, stats.Stats)

	rr = ts.request(http.MethodDelete, "/api/v1/plays/"+recorded.ID, nil, alice)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/plays/"+recorded.ID, nil, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodDelete, "/api/v1/groups/friday/games/AZUL", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[response.Group](t, rr).Games)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/friday/games/azul", nil, bob)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeGameNotInRoster, errorCode(t, rr))
}

func TestRemoveRosterGameByBody(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	createGroup(t, ts, alice, "friday")

	for _, name := range []string{"Catan", "Azul"} {
		rr := ts.request(http.MethodPost, "/api/v1/groups/friday/games", map[string]any{"name": name}, alice)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr := ts.request(http.MethodDelete, "/api/v1/groups/friday/games", map[string]string{"game": "catan"}, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	games := decode[response.Group](t, rr).Games
	require.Len(t, games, 1)
	assert.Equal(t, "Azul", games[0].Name)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/friday/games", map[string]string{"name": "Azul"}, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Empty(t, decode[response.Group](t, rr).Games)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/friday/games", map[string]string{}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/games", map[string]any{"name": "Azul"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/games", map[string]any{"name": "Ticket to Ride", "max_players": 5}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[response.Game](t, rr)
	assert.Equal(t, "ticket to ride", created.Name)
	assert.Equal(t, "/api/v1/games/"+created.ID, rr.Header().Get("Location"))
	assert.Equal(t, "manual", created.Source)

	rr = ts.request(http.MethodPost, "/api/v1/games", map[string]any{"name": "TICKET TO RIDE"}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeGameExists, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/games/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ticket to ride", decode[response.Game](t, rr).Name)

	rr = ts.request(http.MethodGet, "/api/v1/games/search/ticket", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.Game](t, rr), 1)

	rr = ts.request(http.MethodDelete, "/api/v1/games/Ticket%20to%20Ride", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/games", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]response.Game](t, rr))
}

func TestBoardGameGeek(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/bgg/games/Catan", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	fetched := decode[response.Game](t, rr)
	assert.Empty(t, fetched.ID)
	assert.Equal(t, "catan", fetched.Name)

	rr = ts.request(http.MethodGet, "/api/v1/bgg/search/catan", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.SearchResult](t, rr), 1)

	rr = ts.request(http.MethodPost, "/api/v1/bgg/import", map[string]string{"name": "Catan"}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	imported := decode[response.Game](t, rr)
	assert.Equal(t, "bgg", imported.Source)
	assert.Equal(t, "13", imported.ExternalID)

	rr = ts.request(http.MethodGet, "/api/v1/games/catan", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	local := decode[response.Game](t, rr)
	assert.Equal(t, imported.ID, local.ID)
	assert.Equal(t, 3, local.MinPlayers)
	assert.Equal(t, 4, local.MaxPlayers)
	assert.Equal(t, 120, local.PlayingTime)

	rr = ts.request(http.MethodGet, "/api/v1/bgg/games/nothing", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Upstream failures are 500s that do not leak detail
	rr = ts.request(http.MethodGet, "/api/v1/bgg/games/broken", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, apierr.CodeUpstreamError, errorCode(t, rr))
	assert.NotContains(t, rr.Body.String(), "503")
}

func TestInvalidBody(t *testing.T) {
	ts := newTestServer(t)
	token := register(t, ts, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestGroupEventStream(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")
	register(t, ts, "carol")
	createGroup(t, ts, alice, "live")

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	// Non-members cannot subscribe
	rr := ts.request(http.MethodGet, "/api/v1/groups/live/events", nil, bob)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/groups/live/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed waiting for %q", want)
				if line == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: connected")

	rr = ts.request(http.MethodPost, "/api/v1/groups/live/members", map[string]string{"username": "carol"}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	waitFor("event: member_added")
}

// streamLines subscribes to a group's events and returns the raw lines. The
// channel closes when the server ends the stream.
func streamLines(t *testing.T, ctx context.Context, srv *httptest.Server, token, group string) <-chan string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/groups/"+group+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		defer func() { _ = resp.Body.Close() }()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// linesUntilClosed collects what is left of a stream, failing if it stays open
func linesUntilClosed(t *testing.T, ctx context.Context, lines <-chan string) []string {
	t.Helper()
	var rest []string
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return rest
			}
			rest = append(rest, line)
		case <-ctx.Done():
			t.Fatalf("stream still open, got %q", rest)
			return nil
		}
	}
}

func TestRemovedMemberStreamIsClosed(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")
	createGroup(t, ts, alice, "live")
	rr := ts.request(http.MethodPost, "/api/v1/groups/live/members", map[string]string{"username": "bob"}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bobLines := streamLines(t, ctx, srv, bob, "live")
	require.Equal(t, "event: connected", <-bobLines)

	rr = ts.request(http.MethodDelete, "/api/v1/groups/live/members/bob", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = ts.request(http.MethodPost, "/api/v1/groups/live/games", map[string]any{"name": "Secret Game"}, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rest := linesUntilClosed(t, ctx, bobLines)
	assert.Contains(t, rest, "event: member_removed")
	assert.NotContains(t, rest, "event: game_added")
	for _, line := range rest {
		assert.NotContains(t, line, "Secret Game")
	}
}

func TestDeletedGroupStreamIsClosed(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	createGroup(t, ts, alice, "live")

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lines := streamLines(t, ctx, srv, alice, "live")
	require.Equal(t, "event: connected", <-lines)

	rr := ts.request(http.MethodDelete, "/api/v1/groups/live", nil, alice)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	assert.Contains(t, linesUntilClosed(t, ctx, lines), "event: group_deleted")
}
