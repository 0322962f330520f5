package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"coinforge/internal/auth"
	"coinforge/internal/bot"
	cl "coinforge/internal/cli"
	"coinforge/internal/config"
	"coinforge/internal/syncq"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	color.NoColor = color.NoColor || !term.IsTerminal(int(os.Stdout.Fd()))

	root := &cobra.Command{
		Use:          "cfk",
		Short:        "Coinforge terminal client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newHashTokenCmd(),
		newSayCmd(&apiBase),
		newSyncCmd(&apiBase),
		newCheckinCmd(&apiBase),
		newBoomCmd(&apiBase),
		newLedgerCmd(&apiBase),
		newDrawCmd(&apiBase),
		newStorageCmd(&apiBase),
		newMarketCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newPortfolioCmd(&apiBase),
		newWatchCmd(&apiBase),
	)
	root.AddCommand(newArtifactCmds(&apiBase)...)
	root.AddCommand(newOrderCmds(&apiBase)...)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string, token string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), token)
}

// sessionClient loads the saved session and builds a client for it. A base
// URL saved at login wins over the default but not over --api.
func sessionClient(cmd *cobra.Command, apiBase *string) (*cl.Client, cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	base := *apiBase
	if sess.APIBaseURL != "" && !cmd.Flags().Changed("api") {
		base = sess.APIBaseURL
	}
	return newClient(&base, sess.Token), sess, nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login [player]",
		Short: "Save an API token and the player name to act as",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player := ""
			if len(args) > 0 {
				player = strings.TrimSpace(args[0])
			}
			if player == "" {
				var err error
				if player, err = promptRequired("Player name"); err != nil {
					return err
				}
			}
			token, err := promptSecret("API token")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase, token)
			if _, err := client.Market(ctx); err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}
			if err := cl.SaveSession(cl.Session{
				Token:      token,
				Player:     player,
				APIBaseURL: client.BaseURL,
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s.", player))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token",
		Short: "Print the bcrypt hash to put in COINFORGE_API_TOKEN_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := promptSecret("Token to hash")
			if err != nil {
				return err
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func newSayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "say <chat command>",
		Short: "Run a chat command exactly as a bot would, e.g. cfk say .balance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if !bot.IsCommand(text) {
				text = bot.Prefix + text
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			reply, err := client.Command(ctx, chatCommand(sess, text))
			if err != nil {
				return err
			}
			renderReply(reply)
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay commands queued while the server was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			replies, err := client.SyncReplay(ctx, syncq.Commands(queue))
			if err != nil {
				return fmt.Errorf("sync failed, %d command(s) still queued: %w", len(queue), err)
			}
			applied := 0
			for i, reply := range replies {
				fmt.Printf("%s ", neutral.Sprint(queue[i].Command.Text))
				renderReply(reply)
				if reply.Success {
					applied++
				}
			}
			if err := syncq.Save(nil); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: applied=%d rejected=%d", applied, len(replies)-applied))
			return nil
		},
	}
}

func newCheckinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "checkin",
		Short: "Collect the daily check-in reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Checkin(ctx, cl.Platform, sess.Player)
			if err != nil {
				return queueOnNetworkError(err, chatCommand(sess, ".checkin"))
			}
			printSuccess(out.Message)
			return nil
		},
	}
}

func newBoomCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "boom <stake>",
		Short: "Blow up coins for a random payout of 0 to 2x",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stake, err := positiveInt(args[0], "stake")
			if err != nil {
				return err
			}
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Boom(ctx, cl.Platform, sess.Player, stake, idem)
			if err != nil {
				return queueOnNetworkError(err, chatCommandKey(sess, fmt.Sprintf(".boom %d", stake), idem))
			}
			renderBoom(out)
			return nil
		},
	}
}

func newLedgerCmd(apiBase *string) *cobra.Command {
	var upgrade, reroll int64
	var player string
	cmd := &cobra.Command{
		Use:   "ledger <coins>",
		Short: "Operator: adjust a player's coins and items by signed deltas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coins, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid coins delta %q", args[0])
			}
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			if player == "" {
				player = sess.Player
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.AdjustLedger(ctx, cl.Platform, player, coins, upgrade, reroll, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s now has %d coins, %d enhancement items, %d reroll items.",
				player, out.Coins, out.UpgradeItems, out.RerollItems))
			return nil
		},
	}
	cmd.Flags().Int64Var(&upgrade, "upgrade", 0, "enhancement item delta")
	cmd.Flags().Int64Var(&reroll, "reroll", 0, "reroll item delta")
	cmd.Flags().StringVar(&player, "player", "", "player to adjust (defaults to the logged in player)")
	return cmd
}

func newDrawCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "draw",
		Short: "Spend coins on a gacha draw",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Draw(ctx, cl.Platform, sess.Player, idem)
			if err != nil {
				return queueOnNetworkError(err, chatCommandKey(sess, ".draw", idem))
			}
			renderDraw(out)
			return nil
		},
	}
}

func newStorageCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "storage",
		Short:   "List your artifacts",
		Aliases: []string{"inventory", "inv"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Storage(ctx, cl.Platform, sess.Player)
			if err != nil {
				return err
			}
			renderStorage(out)
			return nil
		},
	}
}

func newArtifactCmds(apiBase *string) []*cobra.Command {
	actions := []struct {
		name  string
		short string
	}{
		{"disassemble", "Break an artifact into enhancement items"},
		{"enhance", "Level up an artifact"},
		{"lock", "Protect an artifact from eviction and disassembly"},
		{"unlock", "Remove an artifact's lock"},
	}
	out := make([]*cobra.Command, 0, len(actions))
	for _, a := range actions {
		action := a.name
		out = append(out, &cobra.Command{
			Use:   action + " <artifact id>",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := artifactID(args[0])
				if err != nil {
					return err
				}
				client, sess, err := sessionClient(cmd, apiBase)
				if err != nil {
					return err
				}
				idem := uuid.NewString()
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				msg, err := client.ArtifactAction(ctx, cl.Platform, sess.Player, id, action, idem)
				if err != nil {
					return queueOnNetworkError(err, chatCommandKey(sess, fmt.Sprintf(".%s %d", action, id), idem))
				}
				printSuccess(msg)
				return nil
			},
		})
	}
	return out
}

func newMarketCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "market",
		Short:   "Show the stock board",
		Aliases: []string{"stocks"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Market(ctx)
			if err != nil {
				return err
			}
			renderMarket(out)
			return nil
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history <symbol> [6m|1h|1d]",
		Short: "Show recent prices for a stock",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			period := ""
			if len(args) == 2 {
				period = args[1]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.History(ctx, strings.ToUpper(strings.TrimSpace(args[0])), period)
			if err != nil {
				return err
			}
			renderHistory(out)
			return nil
		},
	}
}

func newPortfolioCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "portfolio",
		Short:   "Show coins, items and holdings",
		Aliases: []string{"balance", "wallet"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Portfolio(ctx, cl.Platform, sess.Player)
			if err != nil {
				return err
			}
			renderPortfolio(out)
			return nil
		},
	}
}

func newOrderCmds(apiBase *string) []*cobra.Command {
	out := make([]*cobra.Command, 0, 2)
	for _, side := range []string{"buy", "sell"} {
		out = append(out, &cobra.Command{
			Use:   side + " <symbol> <quantity>",
			Short: strings.ToUpper(side[:1]) + side[1:] + " shares (5% fee, minimum 1 coin)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				symbol := strings.ToUpper(strings.TrimSpace(args[0]))
				qty, err := positiveInt(args[1], "quantity")
				if err != nil {
					return err
				}
				client, sess, err := sessionClient(cmd, apiBase)
				if err != nil {
					return err
				}
				idem := uuid.NewString()
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				res, err := client.PlaceOrder(ctx, cl.Platform, sess.Player, symbol, side, qty, idem)
				if err != nil {
					return queueOnNetworkError(err, chatCommandKey(sess, fmt.Sprintf(".%s %s %d", side, symbol, qty), idem))
				}
				renderOrder(res)
				return nil
			},
		})
	}
	return out
}

func newWatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live market board",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			events, err := client.Stream(ctx)
			if err != nil {
				return err
			}
			return runWatch(ctx, events)
		},
	}
}

func chatCommand(sess cl.Session, text string) bot.Command {
	return bot.Command{Platform: cl.Platform, RawUserID: sess.Player, Text: text}
}

func chatCommandKey(sess cl.Session, text, idem string) bot.Command {
	cmd := chatCommand(sess, text)
	cmd.IdempotencyKey = idem
	return cmd
}

// queueOnNetworkError keeps a write for `cfk sync` when the server could
// not be reached. Errors the server answered are final.
func queueOnNetworkError(err error, cmd bot.Command) error {
	if err == nil {
		return nil
	}
	if cl.IsAPIError(err) {
		return err
	}
	if qerr := syncq.Push(cmd); qerr != nil {
		return fmt.Errorf("request failed (%v) and queueing failed: %w", err, qerr)
	}
	printWarn(fmt.Sprintf("Server unreachable, queued %q. Run `cfk sync` later.", cmd.Text))
	return nil
}

func positiveInt(raw, label string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, raw)
	}
	return v, nil
}

func artifactID(raw string) (int, error) {
	raw = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(raw)), "ID:")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid artifact id %q", raw)
	}
	return id, nil
}
