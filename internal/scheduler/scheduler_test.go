package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"market-dashboard/internal/models"
)

type countingWarmer struct {
	indices atomic.Int64
	movers  atomic.Int64
	count   atomic.Int64
}

func (w *countingWarmer) RefreshIndices(context.Context) *models.IndexBundle {
	w.indices.Add(1)
	return &models.IndexBundle{Indices: []models.IndexSnapshot{{Data: []models.ChartPoint{{Value: 1}}}}}
}

func (w *countingWarmer) RefreshMovers(_ context.Context, count int) *models.TopMovers {
	w.movers.Add(1)
	w.count.Store(int64(count))
	return &models.TopMovers{}
}

func TestRegisterAll(t *testing.T) {
	w := &countingWarmer{}
	s := NewScheduler(context.Background(), w, Config{IndicesCron: "@every 1m", MoversCron: "*/5 * * * *", MoversCount: 7}, zerolog.Nop())
	if err := s.RegisterAll(); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if s.Jobs() != 2 {
		t.Fatalf("jobs = %d, want 2", s.Jobs())
	}

	s.RunNow()
	if w.indices.Load() != 1 || w.movers.Load() != 1 || w.count.Load() != 7 {
		t.Fatalf("indices=%d movers=%d count=%d", w.indices.Load(), w.movers.Load(), w.count.Load())
	}

	s.Start()
	s.Stop()
}

func TestRegisterAll_DisabledAndInvalid(t *testing.T) {
	w := &countingWarmer{}
	s := NewScheduler(context.Background(), w, Config{IndicesCron: "@every 1m"}, zerolog.Nop())
	if err := s.RegisterAll(); err != nil {
		t.Fatal(err)
	}
	s.RunNow()
	if s.Jobs() != 1 || w.movers.Load() != 0 {
		t.Fatalf("movers job should be disabled")
	}

	bad := NewScheduler(context.Background(), w, Config{MoversCron: "every five minutes"}, zerolog.Nop())
	if err := bad.RegisterAll(); err == nil {
		t.Fatal("invalid spec accepted")
	}
}
