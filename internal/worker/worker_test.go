package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"payday/internal/game"
	"payday/internal/store/memory"
)

type neverSource struct{}

func (neverSource) Float64() float64 { return 0.999999 }

var day0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, svc *game.Service, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		if err := svc.EnsurePlayer(ctx, id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
		if _, err := svc.CreateBusiness(ctx, game.CreateBusinessInput{PlayerID: id, Type: "kiosk"}); err != nil {
			t.Fatalf("create for %s: %v", id, err)
		}
	}
}

func TestRunRoundTicksEveryPlayerOnce(t *testing.T) {
	st := memory.New()
	svc := game.NewService(st, game.Options{Source: neverSource{}})
	seed(t, svc, "a", "b", "c")

	r := &Runner{Game: svc, Players: st, Workers: 2, RetryFor: time.Second}
	sum, err := r.RunRound(context.Background(), day0)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if sum.Players != 3 || sum.Ticked != 3 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	again, err := r.RunRound(context.Background(), day0.Add(time.Hour))
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if again.AlreadyApplied != 3 || again.Ticked != 0 {
		t.Fatalf("same-day round = %+v", again)
	}
}

type flakyTicker struct {
	failures int
	calls    int
}

func (f *flakyTicker) RunTick(_ context.Context, playerID string, now time.Time) (game.TickReport, error) {
	f.calls++
	if f.calls <= f.failures {
		return game.TickReport{}, game.ErrPersistence
	}
	return game.TickReport{PlayerID: playerID, TickAt: now, TotalNetProfitMicros: 7}, nil
}

type staticPlayers []string

func (p staticPlayers) ListPlayers(context.Context) ([]string, error) { return p, nil }

func TestRunRoundRetriesPersistenceFailures(t *testing.T) {
	ft := &flakyTicker{failures: 2}
	r := &Runner{Game: ft, Players: staticPlayers{"p1"}, Workers: 1, RetryFor: 10 * time.Second}
	sum, err := r.RunRound(context.Background(), day0)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if ft.calls != 3 || sum.Ticked != 1 || sum.NetMicros != 7 {
		t.Fatalf("calls=%d summary=%+v", ft.calls, sum)
	}
}

func TestRunRoundCountsPermanentFailures(t *testing.T) {
	st := memory.New()
	svc := game.NewService(st, game.Options{Source: neverSource{}})
	seed(t, svc, "a")
	st.FailCommits(errors.New("disk gone"))

	r := &Runner{Game: svc, Players: st, Workers: 1, RetryFor: 300 * time.Millisecond}
	sum, err := r.RunRound(context.Background(), day0)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if sum.Failed != 1 || sum.Ticked != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	st.FailCommits(nil)
	sum, err = r.RunRound(context.Background(), day0)
	if err != nil || sum.Ticked != 1 {
		t.Fatalf("recovered round = %+v err=%v", sum, err)
	}
}

func TestRunRoundWithoutRetryBudgetTriesOnce(t *testing.T) {
	ft := &flakyTicker{failures: 1}
	r := &Runner{Game: ft, Players: staticPlayers{"p1"}}
	sum, err := r.RunRound(context.Background(), day0)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if ft.calls != 1 || sum.Failed != 1 {
		t.Fatalf("calls=%d summary=%+v", ft.calls, sum)
	}
}
