package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

const adminPath = "/api/v1/admin"

func newBypassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bypass",
		Short: "Manage link limit bypasses",
		Long: `A bypass lets one player link past the per-platform limit once.
It is consumed by the next link that needs it.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <player-id>",
		Short: "Grant a one-shot limit bypass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result BypassResult
			if err := client.Post(cmd.Context(), adminPath+"/bypass/"+escape(args[0]), nil, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <player-id>",
		Short: "Revoke an unused bypass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result BypassResult
			if err := client.Delete(cmd.Context(), adminPath+"/bypass/"+escape(args[0]), &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	})

	return cmd
}

func newForgiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgive <address>",
		Short: "Lift an address ban and reset its escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), adminPath+"/forgive/"+escape(args[0]), nil, nil); err != nil {
				return err
			}
			output(cmd).PrintMessage("Forgave " + args[0])
			return nil
		},
	}
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <chat-user-id> <player-id>",
		Short: "Link a player to a chat account without the login flow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"chat_user_id": args[0], "player_id": args[1]}
			if err := client.Post(cmd.Context(), adminPath+"/links", body, nil); err != nil {
				return err
			}
			output(cmd).PrintMessage("Linked " + args[1] + " to " + args[0])
			return nil
		},
	}
}

func newUnlinkCmd() *cobra.Command {
	var chatUser, player string

	cmd := &cobra.Command{
		Use:   "unlink",
		Short: "Remove account links",
		Long: `Remove links by player, by chat account, or a single pair.

  linkguardctl unlink --player <id>
  linkguardctl unlink --chat <id>
  linkguardctl unlink --chat <id> --player <id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case chatUser != "" && player != "":
				path = "/links/chat/" + escape(chatUser) + "/player/" + escape(player)
			case chatUser != "":
				path = "/links/chat/" + escape(chatUser)
			case player != "":
				path = "/links/player/" + escape(player)
			default:
				return errors.New("one of --chat or --player is required")
			}

			var result UnlinkResult
			if err := client.Delete(cmd.Context(), adminPath+path, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&chatUser, "chat", "", "Chat user id")
	cmd.Flags().StringVar(&player, "player", "", "Player id")

	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <player-id>",
		Short: "Drop a player's pending login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ClearResult
			if err := client.Delete(cmd.Context(), adminPath+"/sessions/"+escape(args[0])+"/login", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <player-id|chat-user-id|name>",
		Short: "Show everything known about a player or chat account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result LookupResult
			if err := client.Get(cmd.Context(), adminPath+"/lookup/"+escape(args[0]), &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List pending logins and address confirmations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionsResult
			if err := client.Get(cmd.Context(), adminPath+"/sessions", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}
