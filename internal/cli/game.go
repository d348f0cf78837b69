package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// gameFlags are the optional descriptive flags of a game
type gameFlags struct {
	description string
	thumbnail   string
	image       string
	minPlayers  int
	maxPlayers  int
	playingTime int
}

func (f *gameFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.thumbnail, "thumbnail", "", "Thumbnail URL")
	cmd.Flags().StringVar(&f.image, "image", "", "Image URL")
	cmd.Flags().IntVar(&f.minPlayers, "min-players", 0, "Minimum player count")
	cmd.Flags().IntVar(&f.maxPlayers, "max-players", 0, "Maximum player count")
	cmd.Flags().IntVar(&f.playingTime, "playing-time", 0, "Playing time in minutes")
}

func (f *gameFlags) request(name string) GameDetails {
	return GameDetails{
		Name:        name,
		Description: f.description,
		Thumbnail:   f.thumbnail,
		Image:       f.image,
		MinPlayers:  f.minPlayers,
		MaxPlayers:  f.maxPlayers,
		PlayingTime: f.playingTime,
	}
}

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game catalog and BoardGameGeek commands",
	}

	cmd.AddCommand(newGameListCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameDeleteCmd())
	cmd.AddCommand(newGameSearchCmd())
	cmd.AddCommand(newGameBGGCmd())
	cmd.AddCommand(newGameBGGSearchCmd())
	cmd.AddCommand(newGameImportCmd())

	return cmd
}

func newGameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Game
			if err := client.Get(apiPath("games"), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name|id>",
		Short: "Show a catalog game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game
			if err := client.Get(apiPath("games", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameCreateCmd() *cobra.Command {
	var details gameFlags

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a game to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game
			if err := client.Post(apiPath("games"), details.request(args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
	details.register(cmd)

	return cmd
}

func newGameDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name|id>",
		Short: "Remove a game from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(apiPath("games", args[0]), nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(fmt.Sprintf("Game %s deleted", args[0]))
			return nil
		},
	}
}

func newGameSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Search the catalog by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Game
			if err := client.Get(apiPath("games", "search", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameBGGCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bgg <name>",
		Short: "Look a game up on BoardGameGeek without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game
			if err := client.Get(apiPath("bgg", "games", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameBGGSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bgg-search <text>",
		Short: "Search BoardGameGeek by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []SearchResult
			if err := client.Get(apiPath("bgg", "search", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <name>",
		Short: "Import a game from BoardGameGeek into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game
			req := map[string]string{"name": args[0]}
			if err := client.Post(apiPath("bgg", "import"), req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
