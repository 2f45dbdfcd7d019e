// Package worker runs the daily tick for every known player.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"payday/internal/game"
	"payday/internal/store"
)

type Ticker interface {
	RunTick(ctx context.Context, playerID string, now time.Time) (game.TickReport, error)
}

type Runner struct {
	Game     Ticker
	Players  store.PlayerLister
	Logger   *slog.Logger
	Workers  int
	RetryFor time.Duration
}

type Summary struct {
	Players        int
	Ticked         int
	AlreadyApplied int
	Failed         int
	NetMicros      int64
}

// RunRound ticks every player once for the day of now. A failing player is
// logged and counted; it never stops the others.
func (r *Runner) RunRound(ctx context.Context, now time.Time) (Summary, error) {
	players, err := r.Players.ListPlayers(ctx)
	if err != nil {
		return Summary{}, err
	}

	var ticked, applied, failed atomic.Int64
	var net atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Workers, 1))
	for _, playerID := range players {
		playerID := playerID
		g.Go(func() error {
			report, err := r.tickPlayer(gctx, playerID, now)
			switch {
			case err == nil:
				ticked.Add(1)
				net.Add(report.TotalNetProfitMicros)
			case errors.Is(err, game.ErrTickAlreadyApplied):
				applied.Add(1)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				failed.Add(1)
				r.logger().Error("player tick failed", "player_id", playerID, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{
		Players:        len(players),
		Ticked:         int(ticked.Load()),
		AlreadyApplied: int(applied.Load()),
		Failed:         int(failed.Load()),
		NetMicros:      net.Load(),
	}, nil
}

// tickPlayer retries transient persistence failures. Nothing is committed
// by a failed attempt, so the retry simulates the day from scratch.
func (r *Runner) tickPlayer(ctx context.Context, playerID string, now time.Time) (game.TickReport, error) {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if r.RetryFor > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 75 * time.Millisecond
		exp.MaxInterval = 1200 * time.Millisecond
		exp.MaxElapsedTime = r.RetryFor
		policy = exp
	}

	var report game.TickReport
	op := func() error {
		out, err := r.Game.RunTick(ctx, playerID, now)
		if err == nil {
			report = out
			return nil
		}
		if errors.Is(err, game.ErrPersistence) {
			r.logger().Warn("player tick retry", "player_id", playerID, "err", err)
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return game.TickReport{}, err
	}
	return report, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
