package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"payday/internal/config"
	"payday/internal/economy"
	"payday/internal/game"
	"payday/internal/store/memory"
)

const simPlayer = "sim"

type simOptions struct {
	BusinessType string
	Days         int
	Seed         int64
	RestockBelow float64
	TablesPath   string
	Start        time.Time
}

type simResult struct {
	Days   []game.TickReport
	Final  game.PlayerView
	Failed []string
}

// runSim plays one business for a number of days on an in-memory store.
// Stock is bought back whenever it drops under RestockBelow and repairs are
// paid as soon as funds allow.
func runSim(ctx context.Context, opts simOptions) (simResult, error) {
	tables, err := config.EngineConfig{TablesPath: opts.TablesPath}.Tables()
	if err != nil {
		return simResult{}, err
	}
	day := opts.Start.UTC()
	svc := game.NewService(memory.New(), game.Options{
		Tables: tables,
		Source: economy.NewSource(opts.Seed),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  func() time.Time { return day },
	})
	if err := svc.EnsurePlayer(ctx, simPlayer); err != nil {
		return simResult{}, err
	}
	created, err := svc.CreateBusiness(ctx, game.CreateBusinessInput{PlayerID: simPlayer, Type: opts.BusinessType})
	if err != nil {
		return simResult{}, err
	}
	businessID := created.Business.ID

	var out simResult
	for i := 0; i < opts.Days; i++ {
		b, err := svc.Business(ctx, simPlayer, businessID)
		if err != nil {
			return simResult{}, err
		}
		if b.InventoryLevel < opts.RestockBelow {
			if _, err := svc.BuyInventory(ctx, game.BuyInventoryInput{PlayerID: simPlayer, BusinessID: businessID}); err != nil {
				out.Failed = append(out.Failed, fmt.Sprintf("%s restock: %v", day.Format("2006-01-02"), err))
			}
		}
		for _, ev := range b.Events {
			if !ev.RequiresAction() || ev.Resolved {
				continue
			}
			if _, err := svc.ResolveEvent(ctx, game.ResolveEventInput{PlayerID: simPlayer, BusinessID: businessID, EventID: ev.ID}); err != nil {
				out.Failed = append(out.Failed, fmt.Sprintf("%s repair: %v", day.Format("2006-01-02"), err))
			}
		}

		report, err := svc.RunTick(ctx, simPlayer, day)
		if err != nil {
			return simResult{}, err
		}
		out.Days = append(out.Days, report)
		day = day.Add(economy.Day)
	}

	out.Final, err = svc.Player(ctx, simPlayer)
	if err != nil {
		return simResult{}, err
	}
	return out, nil
}

func newSimCmd() *cobra.Command {
	opts := simOptions{}
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run a local offline simulation of one business",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Start = time.Now().UTC().Truncate(economy.Day)
			res, err := runSim(cmd.Context(), opts)
			if err != nil {
				return err
			}
			renderSim(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.BusinessType, "type", string(economy.Kiosk), "business type to simulate")
	cmd.Flags().IntVar(&opts.Days, "days", 30, "number of days to run")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&opts.RestockBelow, "restock-below", 40, "restock when inventory drops under this level")
	cmd.Flags().StringVar(&opts.TablesPath, "tables", "", "YAML file overriding the economy tables")
	return cmd
}

func renderSim(res simResult) {
	accent.Printf("\n== SIMULATION (%d days) ==\n", len(res.Days))
	rows := make([][]string, 0, len(res.Days))
	for _, d := range res.Days {
		if len(d.Businesses) == 0 {
			continue
		}
		b := d.Businesses[0]
		note := ""
		if b.Closed {
			note = "closed"
		}
		for _, ev := range b.NewEvents {
			note = fmt.Sprintf("%s %s/%s", note, ev.Type, ev.Outcome)
		}
		rows = append(rows, []string{
			d.TickAt.Format("2006-01-02"),
			formatMicros(d.TotalRevenueMicros),
			formatMicros(d.TotalExpensesMicros + d.TotalEventCostMicros),
			colorizeMicros(d.TotalNetProfitMicros),
			formatMicros(d.FundsMicros),
			fmt.Sprintf("%.2f", b.Rating),
			fmt.Sprintf("%.0f", b.InventoryLevel),
			note,
		})
	}
	fmt.Println(renderTable([]string{"DAY", "REVENUE", "COSTS", "NET", "FUNDS", "RATING", "STOCK", "NOTES"}, rows))
	for _, f := range res.Failed {
		printWarn(f)
	}
	renderPlayer(res.Final)
}
