package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/theme"
)

var peerCmd = &cobra.Command{
	Use:     "peer",
	GroupID: "sync",
	Short:   "Manage the local identity and connected peers",
}

var peerConnectCmd = &cobra.Command{
	Use:   "connect [peer-id]",
	Short: "Connect to a peer, or assign a local identity when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		kind, _ := cmd.Flags().GetString("type")
		announce, _ := cmd.Flags().GetBool("announce")

		var peerID string
		if len(args) == 1 {
			peerID = args[0]
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			id, err := a.ConnectPeer(ctx, peerID, name, kind)
			if err != nil {
				return err
			}
			if peerID == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Local identity: %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", id)
			}

			if announce {
				sent, err := a.Announce(ctx)
				if err != nil {
					return err
				}
				if sent {
					fmt.Fprintf(cmd.OutOrStdout(), "Announced to %s\n", a.Transport().Peer())
				}
			}
			return nil
		})
	},
}

var peerDisconnectCmd = &cobra.Command{
	Use:   "disconnect <peer-id>",
	Short: "Disconnect a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.DisconnectPeer(ctx, args[0])
		})
	},
}

var peerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local sync status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			status := a.SyncStatus()
			id := a.LocalID()
			if id == "" {
				id = theme.MutedStyle.Render("none")
			}
			last := theme.MutedStyle.Render("never")
			if t := a.LastSync(); !t.IsZero() {
				last = t.Local().Format("2006-01-02 15:04:05")
			}

			lines := []string{
				"Status:    " + theme.SyncStatusStyle(status).Render(status.String()),
				"Identity:  " + id,
				"Server:    " + a.Transport().Peer(),
				"Peers:     " + strings.Join(a.Registry().ConnectedPeers(), ", "),
				"Last sync: " + last,
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.PanelStyle.Render(strings.Join(lines, "\n")))
			return nil
		})
	},
}

var peerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known peers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			peers, err := a.Peers(ctx)
			if err != nil {
				return err
			}
			if len(peers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), theme.MutedStyle.Render("no peers yet"))
				return nil
			}
			for _, p := range peers {
				last := "never"
				if p.LastSync != nil {
					last = p.LastSync.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s %s  last sync %s\n",
					theme.SyncStatusStyle(p.SyncStatus).Render(fmt.Sprintf("%-12s", p.SyncStatus)),
					p.PeerID, p.DeviceName, theme.MutedStyle.Render(p.DeviceType), last)
			}
			return nil
		})
	},
}

var peerTokenCmd = &cobra.Command{
	Use:   "token [value]",
	Short: "Store the sync server token in the system keyring",
	Long: `Store the bearer token sent to the sync server in the system keyring.

Without an argument the token is read from stdin. Use --clear to remove it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remove, _ := cmd.Flags().GetBool("clear")
		if remove {
			err := credential.Delete(credential.SyncTokenKey)
			if err != nil && !credential.IsMissing(err) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sync token removed")
			return nil
		}

		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading token: %w", err)
			}
			token = line
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("empty token")
		}

		if err := credential.Set(credential.SyncTokenKey, token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Sync token stored")
		return nil
	},
}

func init() {
	peerConnectCmd.Flags().String("name", "", "device name of the peer")
	peerConnectCmd.Flags().String("type", "", "device type of the peer")
	peerConnectCmd.Flags().Bool("announce", false, "register this device with the sync server")
	peerTokenCmd.Flags().Bool("clear", false, "remove the stored token")

	peerCmd.AddCommand(peerConnectCmd, peerDisconnectCmd, peerStatusCmd, peerListCmd, peerTokenCmd)
	rootCmd.AddCommand(peerCmd)
}
