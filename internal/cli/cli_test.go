package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlayerResult(t *testing.T) {
	tests := []struct {
		in      string
		want    PlayerResult
		wantErr bool
	}{
		{in: "alice", want: PlayerResult{Username: "alice"}},
		{in: "alice:10", want: PlayerResult{Username: "alice", Score: 10}},
		{in: "alice:10:1", want: PlayerResult{Username: "alice", Score: 10, Placement: 1}},
		{in: " bob :-3:2", want: PlayerResult{Username: "bob", Score: -3, Placement: 2}},
		{in: "", wantErr: true},
		{in: ":10", wantErr: true},
		{in: "alice:ten", wantErr: true},
		{in: "alice:1:first", wantErr: true},
		{in: "alice:1:2:3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePlayerResult(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIPathEscapesSegments(t *testing.T) {
	assert.Equal(t, "/api/v1/groups/friday/games/Ticket%20to%20Ride", apiPath("groups", "friday", "games", "Ticket to Ride"))
	assert.Equal(t, "/api/v1/bgg/search/a%2Fb", apiPath("bgg", "search", "a/b"))
}

func TestClientDecodesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"cannot remove the last owner","error":{"code":"LAST_OWNER","message":"cannot remove the last owner"}}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL+"/", "secret").Delete(apiPath("groups", "friday", "owners", "alice"), nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "LAST_OWNER", apiErr.Code)
	assert.Equal(t, "cannot remove the last owner (LAST_OWNER)", err.Error())
}

func TestClientPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Get("/api/v1/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestClientTraceLogsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
		w.Header().Set(requestIDHeader, seen)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var trace bytes.Buffer
	var result HealthResult
	require.NoError(t, NewClient(srv.URL, "").WithTrace(&trace).Get(apiPath("health"), &result))

	assert.Equal(t, "ok", result.Status)
	require.NotEmpty(t, seen)
	assert.Contains(t, trace.String(), "msg=request method=GET")
	assert.Contains(t, trace.String(), "msg=response status=200")
	assert.Equal(t, 2, strings.Count(trace.String(), "request_id="+seen))
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("BGTRACK_SERVER", "https://games.example.com")
	t.Setenv("BGTRACK_OUTPUT", "json")
	t.Setenv("BGTRACK_TOKEN_FILE", "/tmp/bgtrack-token")

	c := DefaultConfig()
	assert.Equal(t, "https://games.example.com", c.ServerURL)
	assert.Equal(t, "json", c.Output)
	assert.Equal(t, "/tmp/bgtrack-token", c.TokenFile)
	require.NoError(t, c.Validate())

	c.Output = "yaml"
	assert.ErrorContains(t, c.Validate(), "invalid output format")

	c.Output = "text"
	c.ServerURL = "localhost:8080"
	assert.ErrorContains(t, c.Validate(), "invalid server")
}

func TestTokenFileRoundTrip(t *testing.T) {
	c := &Config{TokenFile: filepath.Join(t.TempDir(), "nested", "token")}

	require.NoError(t, c.LoadToken())
	assert.Empty(t, c.Token)

	require.NoError(t, c.SaveToken("abc"))
	info, err := os.Stat(c.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := &Config{TokenFile: c.TokenFile}
	require.NoError(t, loaded.LoadToken())
	assert.Equal(t, "abc", loaded.Token)

	require.NoError(t, loaded.ClearToken())
	require.NoError(t, loaded.ClearToken())
	_, err = os.Stat(c.TokenFile)
	assert.True(t, os.IsNotExist(err))
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}

	out.Print(Stats{Group: "friday", Stats: []MemberGameStats{{Username: "alice", Game: "catan", Plays: 3, Wins: 2}}})
	assert.Contains(t, buf.String(), "Stats for friday:")
	assert.Contains(t, buf.String(), "3 plays")

	buf.Reset()
	out.Print(Group{
		Identifier: "friday",
		Members:    []Member{{Username: "alice", Owner: true}, {Username: "bob"}},
		Games:      []RosterGame{{GameDetails: GameDetails{Name: "catan", MinPlayers: 3, MaxPlayers: 4}}},
	})
	assert.Contains(t, buf.String(), "  - alice [owner]\n")
	assert.Contains(t, buf.String(), "  - bob\n")
	assert.Contains(t, buf.String(), "catan (3-4 players)")

	buf.Reset()
	out.Print(HealthResult{Status: "ok", Server: "http://localhost:8080", Latency: "3ms"})
	assert.Equal(t, "http://localhost:8080 is ok (3ms)\n", buf.String())
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "json", w: &buf}

	out.Print(HealthResult{Status: "ok", Server: "http://localhost:8080", Latency: "3ms"})
	assert.JSONEq(t, `{"status":"ok","server":"http://localhost:8080","latency":"3ms"}`, buf.String())
}

func TestReadEvents(t *testing.T) {
	stream := ": keepalive\n\n" +
		"event: member_added\ndata: {\"type\":\"member_added\"}\n\n" +
		"event: multi\ndata: one\ndata: two\n\n" +
		"event: group_deleted\ndata: {}\n\n" +
		"event: never\ndata: x\n\n"

	var names, data []string
	err := readEvents(strings.NewReader(stream), func(name, d string) bool {
		names = append(names, name)
		data = append(data, d)
		return name != "group_deleted"
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"member_added", "multi", "group_deleted"}, names)
	assert.Equal(t, "one\ntwo", data[1])
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"member added", `{"type":"member_added","actor":"alice","payload":{"username":"bob"}}`, "alice added member bob"},
		{"owner granted", `{"type":"owner_changed","actor":"alice","payload":{"username":"bob","owner":true}}`, "alice made bob an owner"},
		{"owner revoked", `{"type":"owner_changed","actor":"bob","payload":{"username":"bob","owner":false}}`, "bob removed bob as owner"},
		{"roster", `{"type":"game_added","actor":"alice","payload":{"name":"Catan"}}`, "alice added Catan to the roster"},
		{"play", `{"type":"play_recorded","actor":"bob","payload":{"play_id":"p1","game":"Catan"}}`, "bob recorded a play of Catan (p1)"},
		{"no actor", `{"type":"group_deleted"}`, "someone deleted the group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasSuffix(describeEvent("x", tt.data), tt.want), describeEvent("x", tt.data))
		})
	}

	assert.Equal(t, "ping: hello", describeEvent("ping", "hello"))
}
