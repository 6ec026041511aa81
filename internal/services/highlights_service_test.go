package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/utils"
)

func makeApps(n int) []models.Application {
	apps := make([]models.Application, n)
	for i := range apps {
		apps[i] = models.Application{
			ID:            int64(i + 1),
			CandidateID:   int64(10000 + i),
			CandidateName: fmt.Sprintf("Candidate %d", i+1),
		}
	}
	return apps
}

// winnersJSON builds a phase-1 response selecting the given application IDs.
// Every score stays at or above the inclusion floor.
func winnersJSON(ids ...int64) string {
	rows := make([]map[string]any, len(ids))
	for i, id := range ids {
		rows[i] = map[string]any{"application_id": id, "score": 70 + i%30, "summary": "strong"}
	}
	b, _ := json.Marshal(rows)
	return string(b)
}

func rankedJSON(ids ...int64) string {
	rows := make([]map[string]any, len(ids))
	for i, id := range ids {
		rows[i] = map[string]any{"rank": i + 1, "application_id": id, "score": 95 - i, "summary": "finalist"}
	}
	b, _ := json.Marshal(rows)
	return string(b)
}

func TestHighlightsBatchPartitioning(t *testing.T) {
	ats := &fakeATS{apps: makeApps(250)}
	provider := &fakeProvider{responses: []string{
		winnersJSON(1, 2, 3),
		winnersJSON(101, 102),
		winnersJSON(201),
		rankedJSON(1, 101, 2, 201, 102, 3),
	}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	var batches []progress.Batch
	sink := progress.Sink(func(ev progress.Event) {
		if b, ok := ev.(progress.Batch); ok {
			batches = append(batches, b)
		}
	})

	out, err := svc.Run(context.Background(), 42, "Engineer", 100, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 250 candidates at batch size 100 -> 3 elimination calls + 1 final.
	if len(provider.requests) != 4 {
		t.Fatalf("expected 4 LLM calls, got %d", len(provider.requests))
	}
	// Each batch asks for ceil(1.5*100/3) = 50 winners.
	for i := 0; i < 3; i++ {
		if !strings.Contains(provider.requests[i].System, "UP TO 50") {
			t.Errorf("batch %d prompt should request up to 50 winners:\n%s", i+1, provider.requests[i].System)
		}
	}
	if len(batches) != 3 {
		t.Errorf("expected 3 batch events, got %d", len(batches))
	}
	if batches[2].Winners != 6 {
		t.Errorf("winners-so-far after batch 3 = %d, want 6", batches[2].Winners)
	}
	if len(out) != 6 {
		t.Errorf("expected 6 highlighted candidates, got %d", len(out))
	}
}

func TestHighlightsSmallTopNAskRoundsUp(t *testing.T) {
	ats := &fakeATS{apps: makeApps(3)}
	provider := &fakeProvider{responses: []string{winnersJSON(1, 2), rankedJSON(1)}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	out, err := svc.Run(context.Background(), 42, "Engineer", 1, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One batch, topN=1: the ask is ceil(1.5*1/1) = 2, never rounded down to 1.
	if !strings.Contains(provider.requests[0].System, "UP TO 2") {
		t.Errorf("batch prompt should request up to 2 winners:\n%s", provider.requests[0].System)
	}
	if len(out) != 1 {
		t.Errorf("expected 1 highlighted candidate, got %d", len(out))
	}
}

func TestHighlightsFinalRankingRetriesRateLimit(t *testing.T) {
	ats := &fakeATS{apps: makeApps(3)}
	provider := &fakeProvider{
		errs:      []error{nil, utils.EStatus(utils.CodeRateLimited, "llm.Complete", "rate limited", 429, nil), nil},
		responses: []string{winnersJSON(1), "", rankedJSON(1)},
	}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New()).(*highlightsService)

	var slept []time.Duration
	svc.sleep = func(d time.Duration) { slept = append(slept, d) }

	out, err := svc.Run(context.Background(), 42, "Engineer", 10, nil)
	if err != nil {
		t.Fatalf("a rate-limited final call must be retried: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected 1 candidate after retry, got %d", len(out))
	}
	if len(provider.requests) != 3 {
		t.Errorf("expected 3 LLM calls (batch + failed final + retry), got %d", len(provider.requests))
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("backoff = %v, want one 2s delay", slept)
	}
}

func TestHighlightsFinalPromptBudgetCapsResumes(t *testing.T) {
	apps := makeApps(250)
	// 3000 chars: survives the 3000 ceiling untouched, so the tail marker only
	// disappears when the 500000-char budget tightens the per-candidate cap.
	long := strings.Repeat("a", 2500) + "ZTAILZ" + strings.Repeat("b", 494)
	texts := make(map[string]string, len(apps))
	for i := range apps {
		apps[i].ResumeURL = fmt.Sprintf("res://%d", apps[i].ID)
		texts[apps[i].ResumeURL] = long
	}

	batch1 := make([]int64, 100)
	batch2 := make([]int64, 100)
	for i := 0; i < 100; i++ {
		batch1[i] = int64(i + 1)
		batch2[i] = int64(i + 101)
	}
	provider := &fakeProvider{responses: []string{
		winnersJSON(batch1...),
		winnersJSON(batch2...),
		"[]",
		rankedJSON(1),
	}}
	svc := NewHighlightsService(&fakeATS{apps: apps}, &fakeDocs{texts: texts}, provider, logger.New())

	out, err := svc.Run(context.Background(), 42, "Engineer", 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 ranked candidate, got %d", len(out))
	}

	// 200 finalists: per-candidate cap is 500000/200 = 2500, under the ceiling.
	final := provider.requests[3].Blocks[0].Text
	if strings.Contains(final, "ZTAILZ") {
		t.Error("final prompt must truncate resumes to the budget-derived cap")
	}
	if !strings.Contains(final, strings.Repeat("a", 2500)) {
		t.Error("final prompt should keep the first 2500 chars of each resume")
	}
	// Elimination batches cap tighter still.
	if strings.Contains(provider.requests[0].Blocks[0].Text, strings.Repeat("a", 1501)) {
		t.Error("elimination prompt must truncate resumes to 1500 chars")
	}
}

func TestHighlightsRanksDenseAndTiered(t *testing.T) {
	ats := &fakeATS{apps: makeApps(30)}

	ids := make([]int64, 30)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	provider := &fakeProvider{responses: []string{winnersJSON(ids...), rankedJSON(ids...)}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	out, err := svc.Run(context.Background(), 42, "Engineer", 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 30 {
		t.Fatalf("expected 30 ranked candidates, got %d", len(out))
	}
	for i, hc := range out {
		if hc.Rank != i+1 {
			t.Errorf("rank at %d = %d, want contiguous from 1", i, hc.Rank)
		}
		wantTier := "good"
		switch {
		case hc.Rank <= 10:
			wantTier = "top"
		case hc.Rank <= 25:
			wantTier = "strong"
		}
		if hc.Tier != wantTier {
			t.Errorf("rank %d tier = %q, want %q", hc.Rank, hc.Tier, wantTier)
		}
		if !strings.Contains(hc.ProfileURL, fmt.Sprintf("application_id=%d", hc.ApplicationID)) {
			t.Errorf("profile url missing application deep link: %q", hc.ProfileURL)
		}
	}
}

func TestHighlightsBatchParseFailureDegrades(t *testing.T) {
	ats := &fakeATS{apps: makeApps(250)}
	provider := &fakeProvider{responses: []string{
		winnersJSON(1, 2),
		"I refuse to answer in JSON.",
		winnersJSON(201),
		rankedJSON(1, 201, 2),
	}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	out, err := svc.Run(context.Background(), 42, "Engineer", 100, nil)
	if err != nil {
		t.Fatalf("a failed batch must not abort the pipeline: %v", err)
	}
	if len(out) != 3 {
		t.Errorf("expected 3 candidates from the surviving batches, got %d", len(out))
	}
}

func TestHighlightsAllBatchesFailedYieldsEmpty(t *testing.T) {
	ats := &fakeATS{apps: makeApps(120)}
	provider := &fakeProvider{responses: []string{"nope", "also nope"}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	out, err := svc.Run(context.Background(), 42, "Engineer", 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %d", len(out))
	}
	// Phase 2 must not have been invoked.
	if len(provider.requests) != 2 {
		t.Errorf("expected only the 2 elimination calls, got %d", len(provider.requests))
	}
}

func TestHighlightsScoreFloor(t *testing.T) {
	ats := &fakeATS{apps: makeApps(3)}
	provider := &fakeProvider{responses: []string{
		`[{"application_id":1,"score":95,"summary":"great"},{"application_id":2,"score":60,"summary":"weak"}]`,
		rankedJSON(1),
	}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	out, err := svc.Run(context.Background(), 42, "Engineer", 10, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 || out[0].ApplicationID != 1 {
		t.Errorf("scores under the floor must be dropped: %+v", out)
	}
}

func TestHighlightsNoCandidates(t *testing.T) {
	svc := NewHighlightsService(&fakeATS{}, &fakeDocs{}, &fakeProvider{}, logger.New())
	out, err := svc.Run(context.Background(), 42, "Engineer", 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result for empty pool, got %d", len(out))
	}
}

func TestHighlightsEventOrdering(t *testing.T) {
	ats := &fakeATS{apps: makeApps(5)}
	provider := &fakeProvider{responses: []string{winnersJSON(1), rankedJSON(1)}}
	svc := NewHighlightsService(ats, &fakeDocs{}, provider, logger.New())

	var kinds []progress.Kind
	sink := progress.Sink(func(ev progress.Event) { kinds = append(kinds, ev.Kind()) })

	if _, err := svc.Run(context.Background(), 42, "Engineer", 10, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(kinds) == 0 || kinds[0] != progress.KindStatus {
		t.Fatalf("stream must open with a status event, got %v", kinds)
	}
	sawFetching := false
	for _, k := range kinds {
		if k == progress.KindFetching {
			sawFetching = true
		}
	}
	if !sawFetching {
		t.Errorf("expected a fetching event in %v", kinds)
	}
}
