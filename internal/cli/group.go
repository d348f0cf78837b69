package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group management commands",
	}

	cmd.AddCommand(newGroupCreateCmd())
	cmd.AddCommand(newGroupGetCmd())
	cmd.AddCommand(newGroupUpdateCmd())
	cmd.AddCommand(newGroupDeleteCmd())
	cmd.AddCommand(newGroupRelationCmd("members", "member", "Add or remove group members"))
	cmd.AddCommand(newGroupRelationCmd("owners", "owner", "Promote or demote group owners"))
	cmd.AddCommand(newGroupGamesCmd())
	cmd.AddCommand(newGroupPlaysCmd())
	cmd.AddCommand(newGroupStatsCmd())

	return cmd
}

func newGroupCreateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "create <identifier>",
		Short: "Create a group with you as its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"identifier":   args[0],
				"display_name": name,
				"description":  description,
			}
			var result Group

			if err := client.Post(apiPath("groups"), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&description, "description", "", "Description")

	return cmd
}

func newGroupGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Show a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group
			if err := client.Get(apiPath("groups", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGroupUpdateCmd() *cobra.Command {
	var identifier, name, description string

	cmd := &cobra.Command{
		Use:   "update <identifier>",
		Short: "Rename a group or change its details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{}
			if cmd.Flags().Changed("identifier") {
				req["identifier"] = identifier
			}
			if cmd.Flags().Changed("name") {
				req["display_name"] = name
			}
			if cmd.Flags().Changed("description") {
				req["description"] = description
			}
			if len(req) == 0 {
				return fmt.Errorf("nothing to update")
			}

			var result Group
			if err := client.Patch(apiPath("groups", args[0]), req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "New identifier")
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&description, "description", "", "New description")

	return cmd
}

func newGroupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identifier>",
		Short: "Delete a group and its plays (owners only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(apiPath("groups", args[0]), nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage(fmt.Sprintf("Group %s deleted", args[0]))
			return nil
		},
	}
}

// newGroupRelationCmd builds the add/remove pair for the members and owners
// collections, which share a shape
func newGroupRelationCmd(collection, noun, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   collection,
		Short: short,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <identifier> <username>",
		Short: "Add a " + noun,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group
			req := map[string]string{"username": args[1]}
			if err := client.Post(apiPath("groups", args[0], collection), req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <identifier> <username>",
		Short: "Remove a " + noun,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group
			if err := client.Delete(apiPath("groups", args[0], collection, args[1]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	})

	return cmd
}

func newGroupGamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Manage a group's game roster",
	}

	var details gameFlags
	add := &cobra.Command{
		Use:   "add <identifier> <name>",
		Short: "Add a game to the roster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group
			if err := client.Post(apiPath("groups", args[0], "games"), details.request(args[1]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
	details.register(add)
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <identifier> <name>",
		Short: "Remove a game from the roster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group
			if err := client.Delete(apiPath("groups", args[0], "games", args[1]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	})

	return cmd
}

func newGroupPlaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plays <identifier>",
		Short: "List a group's plays, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Play
			if err := client.Get(apiPath("groups", args[0], "plays"), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGroupStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <identifier>",
		Short: "Show plays and wins per member and game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Stats
			if err := client.Get(apiPath("groups", args[0], "stats"), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
