package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play ledger commands",
	}

	cmd.AddCommand(newPlayRecordCmd())
	cmd.AddCommand(newPlayListCmd())
	cmd.AddCommand(newPlayDeleteCmd())

	return cmd
}

func newPlayRecordCmd() *cobra.Command {
	var (
		players  []string
		playedAt string
	)

	cmd := &cobra.Command{
		Use:   "record <group> <game>",
		Short: "Record a play of a roster game",
		Long: `Record a play of a game on the group's roster.

Each --player is username[:score[:placement]], for example:

  bgtrack play record friday catan --player alice:10:1 --player bob:7:2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]PlayerResult, 0, len(players))
			for _, p := range players {
				r, err := parsePlayerResult(p)
				if err != nil {
					return err
				}
				results = append(results, r)
			}

			req := map[string]any{
				"group":   args[0],
				"game":    args[1],
				"players": results,
			}
			if playedAt != "" {
				at, err := time.Parse(time.RFC3339, playedAt)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
				req["played_at"] = at
			}

			var result Play
			if err := client.Post(apiPath("plays"), req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&players, "player", "p", nil, "Player result as username[:score[:placement]] (repeatable)")
	cmd.Flags().StringVar(&playedAt, "at", "", "When the play happened (RFC 3339, default now)")
	_ = cmd.MarkFlagRequired("player")

	return cmd
}

// parsePlayerResult parses username[:score[:placement]]
func parsePlayerResult(s string) (PlayerResult, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return PlayerResult{}, fmt.Errorf("invalid player %q: want username[:score[:placement]]", s)
	}

	r := PlayerResult{Username: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		score, err := strconv.Atoi(parts[1])
		if err != nil {
			return PlayerResult{}, fmt.Errorf("invalid score in %q: %w", s, err)
		}
		r.Score = score
	}
	if len(parts) > 2 {
		placement, err := strconv.Atoi(parts[2])
		if err != nil {
			return PlayerResult{}, fmt.Errorf("invalid placement in %q: %w", s, err)
		}
		r.Placement = placement
	}
	return r, nil
}

func newPlayListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <group>",
		Short: "List a group's plays, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Play
			if err := client.Get(apiPath("plays", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newPlayDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <play-id>",
		Short: "Delete a play",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(apiPath("plays", args[0]), nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(fmt.Sprintf("Play %s deleted", args[0]))
			return nil
		},
	}
}
