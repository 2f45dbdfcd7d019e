package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cl "payday/internal/cli"
	"payday/internal/config"
	"payday/internal/game"
	"payday/internal/syncq"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "payday",
		Short:        "Payday business simulation client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase, cfg.PlayerID),
		newLogoutCmd(),
		newMeCmd(&apiBase),
		newCatalogCmd(&apiBase),
		newTickCmd(&apiBase),
		newSyncCmd(&apiBase),
		newBusinessCmd(&apiBase),
		newSimCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string, playerID string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), playerID)
}

// sessionClient builds a client for the saved player. The session's API URL
// wins unless --api is given.
func sessionClient(cmd *cobra.Command, apiBase *string) (*cl.Client, error) {
	sess, err := cl.LoadSession()
	if errors.Is(err, cl.ErrNoSession) {
		return nil, fmt.Errorf("login required, run `payday login <player-id>`: %w", err)
	}
	if err != nil {
		return nil, err
	}
	base := *apiBase
	if f := cmd.Flag("api"); sess.APIBaseURL != "" && (f == nil || !f.Changed) {
		base = sess.APIBaseURL
	}
	return newClient(&base, sess.PlayerID), nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newLoginCmd(apiBase *string, envPlayer string) *cobra.Command {
	return &cobra.Command{
		Use:   "login [player-id]",
		Short: "Register a player id and save it as the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			playerID := envPlayer
			if len(args) > 0 {
				playerID = strings.TrimSpace(args[0])
			}
			if err := game.ValidatePlayerID(playerID); err != nil {
				return fmt.Errorf("player id %q: %w", playerID, err)
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			client := newClient(apiBase, playerID)
			view, err := client.EnsurePlayer(ctx)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{PlayerID: playerID, APIBaseURL: client.BaseURL}); err != nil {
				return err
			}
			printSuccess("Session saved for " + playerID)
			renderPlayer(view)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newMeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "me",
		Aliases: []string{"dash"},
		Short:   "Show funds, achievements and businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			view, err := client.Me(ctx)
			if err != nil {
				return err
			}
			renderPlayer(view)
			return nil
		},
	}
}

func newCatalogCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Show prices and effects of everything you can buy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			out, err := newClient(apiBase, "").Catalog(ctx)
			if err != nil {
				return err
			}
			renderCatalog(out)
			return nil
		},
	}
}

func newTickCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run today's simulation step for your businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			report, err := client.Tick(ctx)
			if isStatus(err, http.StatusConflict) {
				printWarn("Today's tick was already applied.")
				return nil
			}
			if err != nil {
				return err
			}
			renderTick(report)
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes queued while the API was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			send := func(ctx context.Context, c syncq.Command) error {
				_, err := client.Do(ctx, c.Method, c.Path, c.Body, c.IdempotencyKey)
				if isStatus(err, http.StatusConflict) && strings.Contains(err.Error(), "idempotency") {
					return nil
				}
				return err
			}
			sent, failed, err := syncq.Replay(ctx, send, func(err error) bool { return !isAPIError(err) })
			if err != nil {
				return err
			}
			for _, f := range failed {
				printError("Sync failed: " + f.Error())
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d failed=%d", sent, len(failed)))
			return nil
		},
	}
}

func newBusinessCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "business",
		Aliases: []string{"biz"},
		Short:   "Manage your businesses",
	}
	cmd.AddCommand(
		newBusinessListCmd(apiBase),
		newBusinessShowCmd(apiBase),
		newBusinessCreateCmd(apiBase),
		newBusinessHireCmd(apiBase),
		newBusinessFireCmd(apiBase),
		newBusinessRestockCmd(apiBase),
		newBusinessUpgradeCmd(apiBase),
		newBusinessSellCmd(apiBase),
		newBusinessResolveCmd(apiBase),
	)
	return cmd
}

func newBusinessListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			list, err := client.Businesses(ctx)
			if err != nil {
				return err
			}
			renderBusinessList(list)
			return nil
		},
	}
}

func newBusinessShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <business-id>",
		Short: "Show staff, upgrades and events of a business",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			b, err := client.Business(ctx, args[0])
			if err != nil {
				return err
			}
			renderBusiness(b, time.Now())
			return nil
		},
	}
}

func newBusinessCreateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <type>",
		Short: "Open a new business (kiosk, cafe, restaurant, restaurant_chain)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.CreateBusiness(ctx, args[0], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           "/v1/businesses",
					Body:           map[string]any{"type": args[0]},
					IdempotencyKey: idem,
				})
			}
			renderMutation("Opened", out)
			return nil
		},
	}
}

func newBusinessHireCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hire <business-id> <role>",
		Short: "Hire a chef, cashier or manager",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.HireEmployee(ctx, args[0], args[1], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           cl.BusinessPath(args[0], "/employees"),
					Body:           map[string]any{"type": args[1]},
					IdempotencyKey: idem,
				})
			}
			renderMutation("Hired", out)
			return nil
		},
	}
}

func newBusinessFireCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fire <business-id> <employee-id>",
		Short: "Let an employee go",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.FireEmployee(ctx, args[0], args[1], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodDelete,
					Path:           cl.BusinessPath(args[0], "/employees/"+args[1]),
					IdempotencyKey: idem,
				})
			}
			renderMutation("Fired", out)
			return nil
		},
	}
}

func newBusinessRestockCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restock <business-id>",
		Short: "Buy inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.BuyInventory(ctx, args[0], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           cl.BusinessPath(args[0], "/inventory"),
					IdempotencyKey: idem,
				})
			}
			renderMutation("Restocked", out)
			return nil
		},
	}
}

func newBusinessUpgradeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <business-id> <upgrade>",
		Short: "Buy new_menu, delivery, renovation or advertising",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.PurchaseUpgrade(ctx, args[0], args[1], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           cl.BusinessPath(args[0], "/upgrades"),
					Body:           map[string]any{"type": args[1]},
					IdempotencyKey: idem,
				})
			}
			renderMutation("Upgraded", out)
			return nil
		},
	}
}

func newBusinessSellCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sell <business-id>",
		Short: "Sell a business for part of what was invested",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.SellBusiness(ctx, args[0], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           cl.BusinessPath(args[0], "/sell"),
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("Sold %s for %s coins", out.BusinessID, formatMicros(out.RefundMicros)))
			fmt.Printf("Funds: %s coins\n", colorizeMicros(out.FundsMicros))
			return nil
		},
	}
}

func newBusinessResolveCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <business-id> <event-id>",
		Short: "Pay for a pending repair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sessionClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			idem := uuid.NewString()
			out, err := client.ResolveEvent(ctx, args[0], args[1], idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPost,
					Path:           cl.BusinessPath(args[0], "/events/"+args[1]+"/resolve"),
					IdempotencyKey: idem,
				})
			}
			renderMutation("Repaired", out)
			return nil
		},
	}
}

// queueOnNetworkError keeps a write for `payday sync` when the API could
// not be reached. Errors the API answered are returned as they are.
func queueOnNetworkError(err error, c syncq.Command) error {
	if err == nil {
		return nil
	}
	if isAPIError(err) || errors.Is(err, context.Canceled) {
		return err
	}
	if qerr := syncq.Push(c); qerr != nil {
		return fmt.Errorf("request failed and could not be queued: %w", errors.Join(err, qerr))
	}
	printWarn("API unreachable; queued for `payday sync`.")
	return nil
}

func isAPIError(err error) bool {
	var apiErr *cl.APIError
	return errors.As(err, &apiErr)
}

func isStatus(err error, status int) bool {
	var apiErr *cl.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
