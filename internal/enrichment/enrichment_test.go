package enrichment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cpl-matcher/internal/unit"
)

type oracleFunc func(ctx context.Context, req Request) (unit.Enrichment, error)

func (f oracleFunc) Enrich(ctx context.Context, req Request) (unit.Enrichment, error) {
	return f(ctx, req)
}

type memoryWriter struct {
	mu      sync.Mutex
	updated map[int64]unit.Unit
	err     error
}

func (w *memoryWriter) UpdateExternalUnit(_ context.Context, u unit.Unit) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.updated == nil {
		w.updated = make(map[int64]unit.Unit)
	}
	w.updated[u.ID] = u
	return nil
}

func TestBatchRun(t *testing.T) {
	long := strings.Repeat("Covers relational modelling and SQL. ", 5)
	units := []unit.Unit{
		{ID: 1, Code: "DB101", Title: "Databases", Institution: "Uni", SourceURL: "https://uni.example/units/DB101"},
		{ID: 2, Code: "NET201", Title: "Networks", Description: "Existing short text"},
		{ID: 3, Code: "WEB301", Title: "Web", Description: long, LearningOutcomes: "Build sites"},
		{ID: 4, Code: "SEC401", Title: "Security"},
	}

	var (
		mu   sync.Mutex
		seen []Request
	)
	oracle := oracleFunc(func(_ context.Context, req Request) (unit.Enrichment, error) {
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		switch req.Code {
		case "DB101":
			return unit.Enrichment{
				Description:      unit.Some(long),
				LearningOutcomes: unit.Some("Design normalised schemas"),
				Mode:             unit.Some("static"),
				Confidence:       unit.Some(0.8),
			}, nil
		case "NET201":
			return unit.Enrichment{Description: unit.Some("   ")}, nil
		default:
			return unit.Enrichment{}, errors.New("site unreachable")
		}
	})

	core, logs := observer.New(zap.InfoLevel)
	writer := &memoryWriter{}
	b := NewBatch(oracle, writer, Options{Workers: 2}, zap.New(core))

	out, report, err := b.Run(context.Background(), units)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := Report{Total: 4, Skipped: 1, Enriched: 1, Empty: 1, Failed: 1}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}

	if len(out) != len(units) {
		t.Fatalf("expected %d units, got %d", len(units), len(out))
	}
	for i := range units {
		if out[i].ID != units[i].ID {
			t.Fatalf("order changed at %d: got id %d", i, out[i].ID)
		}
	}

	db := out[0]
	if db.LearningOutcomes != "Design normalised schemas" || db.RetrievalMode != "static" || db.RetrievalConfidence != 0.8 {
		t.Fatalf("DB101 not merged: %+v", db)
	}
	if db.SourceURL != "https://uni.example/units/DB101" {
		t.Fatalf("source url must be kept: %q", db.SourceURL)
	}
	if out[1].Description != "Existing short text" {
		t.Fatalf("blank enrichment must not clear: %q", out[1].Description)
	}
	if out[3] != units[3] {
		t.Fatalf("failed unit must be left as-is: %+v", out[3])
	}

	if len(writer.updated) != 1 || writer.updated[1].LearningOutcomes != "Design normalised schemas" {
		t.Fatalf("writer updates = %+v", writer.updated)
	}

	if len(seen) != 3 {
		t.Fatalf("oracle called %d times, want 3", len(seen))
	}
	for _, req := range seen {
		if req.Code == "DB101" && (req.SourceHint != units[0].SourceURL || req.Institution != "Uni") {
			t.Fatalf("request not built from the unit: %+v", req)
		}
	}

	if logs.FilterMessage("enrichment failed; unit left as-is").Len() != 1 {
		t.Fatalf("expected one failure warning, got %v", logs.All())
	}
}

func TestBatchForce(t *testing.T) {
	calls := 0
	oracle := oracleFunc(func(context.Context, Request) (unit.Enrichment, error) {
		calls++
		return unit.Enrichment{}, nil
	})
	complete := unit.Unit{ID: 1, Code: "X1", Description: strings.Repeat("d", 200), LearningOutcomes: "o"}

	tests := []struct {
		name      string
		force     bool
		wantCalls int
	}{
		{name: "complete units are skipped", force: false, wantCalls: 0},
		{name: "force re-enriches", force: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0
			b := NewBatch(oracle, nil, Options{Workers: 1, Force: tt.force}, nil)
			if _, _, err := b.Run(context.Background(), []unit.Unit{complete}); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if calls != tt.wantCalls {
				t.Fatalf("oracle calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestBatchWriterFailure(t *testing.T) {
	oracle := oracleFunc(func(context.Context, Request) (unit.Enrichment, error) {
		return unit.Enrichment{LearningOutcomes: unit.Some("Analyse data")}, nil
	})
	writer := &memoryWriter{err: errors.New("database is locked")}
	in := []unit.Unit{{ID: 7, Code: "DA100"}}

	out, report, err := NewBatch(oracle, writer, Options{}, nil).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Failed != 1 || report.Enriched != 0 {
		t.Fatalf("report = %+v", report)
	}
	if out[0].LearningOutcomes != "" {
		t.Fatalf("unit must stay unchanged when the write fails: %+v", out[0])
	}
}

func TestBatchPerUnitTimeout(t *testing.T) {
	oracle := oracleFunc(func(ctx context.Context, _ Request) (unit.Enrichment, error) {
		<-ctx.Done()
		return unit.Enrichment{}, ctx.Err()
	})

	b := NewBatch(oracle, nil, Options{Timeout: 10 * time.Millisecond}, nil)
	_, report, err := b.Run(context.Background(), []unit.Unit{{ID: 1, Code: "SLOW1"}})
	if err != nil {
		t.Fatalf("a unit timeout must not abort the batch: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestBatchCancelled(t *testing.T) {
	oracle := oracleFunc(func(ctx context.Context, _ Request) (unit.Enrichment, error) {
		return unit.Enrichment{}, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewBatch(oracle, nil, Options{}, nil).Run(ctx, []unit.Unit{{ID: 1, Code: "A1"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBatchWithoutOracle(t *testing.T) {
	if _, _, err := NewBatch(nil, nil, Options{}, nil).Run(context.Background(), nil); err == nil {
		t.Fatal("expected an error without an oracle")
	}
}

func TestNeedsEnrichment(t *testing.T) {
	tests := []struct {
		name string
		u    unit.Unit
		want bool
	}{
		{name: "empty", u: unit.Unit{Code: "A"}, want: true},
		{name: "short description", u: unit.Unit{Description: "brief", LearningOutcomes: "x"}, want: true},
		{name: "no outcomes", u: unit.Unit{Description: strings.Repeat("d", 100)}, want: true},
		{name: "complete", u: unit.Unit{Description: strings.Repeat("d", 100), LearningOutcomes: "x"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsEnrichment(tt.u); got != tt.want {
				t.Fatalf("NeedsEnrichment() = %v, want %v", got, tt.want)
			}
		})
	}
}
