package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events <group>",
		Short: "Stream a group's events",
		Long: `Connect to the group's event stream and print changes as they happen.

Events are named after what changed: member_added, member_removed,
owner_changed, game_added, game_removed, group_updated, group_deleted,
play_recorded and play_deleted. The stream ends when the group is deleted.

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, args[0], jsonOutput, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print each event as a JSON line")

	return cmd
}

// GroupEvent mirrors the server's event body
type GroupEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	GroupID   string          `json:"group_id"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type eventPayload struct {
	Username string `json:"username"`
	Owner    bool   `json:"owner"`
	Name     string `json:"name"`
	PlayID   string `json:"play_id"`
	Game     string `json:"game"`
}

func streamEvents(ctx context.Context, group string, jsonOutput bool, w io.Writer) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + apiPath("groups", group, "events")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	// the stream is long lived, so no client timeout
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Code != "" {
			errResp.Error.Status = resp.StatusCode
			return &errResp.Error
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		fmt.Fprintf(w, "Connected to group %s\n", group)
	}

	err = readEvents(resp.Body, func(name, data string) bool {
		if jsonOutput {
			fmt.Fprintln(w, data)
		} else {
			fmt.Fprintln(w, describeEvent(name, data))
		}
		return name != "group_deleted"
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintln(w, "Disconnected")
	}
	return nil
}

// readEvents parses a text/event-stream body, calling handle for each
// complete event until it returns false or the body ends. Comment lines such
// as keepalives are skipped.
func readEvents(r io.Reader, handle func(name, data string) bool) error {
	scanner := bufio.NewScanner(r)
	var name string
	var data []string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if name != "" {
				if !handle(name, strings.Join(data, "\n")) {
					return nil
				}
			}
			name, data = "", nil
		}
	}
	return scanner.Err()
}

// describeEvent renders an event as a single readable line. Data that is not
// an event body is shown as is.
func describeEvent(name, data string) string {
	var evt GroupEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil || evt.Type == "" {
		return fmt.Sprintf("%s: %s", name, data)
	}

	var p eventPayload
	if len(evt.Payload) > 0 {
		_ = json.Unmarshal(evt.Payload, &p)
	}

	var what string
	switch evt.Type {
	case "member_added":
		what = fmt.Sprintf("added member %s", p.Username)
	case "member_removed":
		what = fmt.Sprintf("removed member %s", p.Username)
	case "owner_changed":
		if p.Owner {
			what = fmt.Sprintf("made %s an owner", p.Username)
		} else {
			what = fmt.Sprintf("removed %s as owner", p.Username)
		}
	case "game_added":
		what = fmt.Sprintf("added %s to the roster", p.Name)
	case "game_removed":
		what = fmt.Sprintf("removed %s from the roster", p.Name)
	case "group_updated":
		what = "updated the group"
	case "group_deleted":
		what = "deleted the group"
	case "play_recorded":
		what = fmt.Sprintf("recorded a play of %s (%s)", p.Game, p.PlayID)
	case "play_deleted":
		what = fmt.Sprintf("deleted play %s of %s", p.PlayID, p.Game)
	default:
		what = evt.Type
	}

	actor := evt.Actor
	if actor == "" {
		actor = "someone"
	}
	return fmt.Sprintf("[%s] %s %s", evt.Timestamp.Local().Format("2006-01-02 15:04:05"), actor, what)
}
