package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/providers/llm"
)

const (
	// DefaultTopN is the highlights list size when the caller does not ask
	// for one.
	DefaultTopN = 100
	// rankBatchSize is the phase-1 elimination batch: one LLM call per 100
	// candidates.
	rankBatchSize = 100
	// scoreFloor is the minimum phase-1 inclusion score.
	scoreFloor = 70

	phase1TextCap      = 1500
	phase2TextCeil     = 3000
	phase2PromptBudget = 500000

	extractConcurrency = 25
)

type HighlightsService interface {
	// Run fetches every active candidate for the job and ranks the top N
	// through the two-phase tournament, reporting progress along the way.
	Run(ctx context.Context, jobID int64, jobTitle string, topN int, sink progress.Sink) ([]models.HighlightedCandidate, error)
}

type highlightsService struct {
	ats      ATSClient
	docs     DocumentSource
	provider llm.Provider
	log      *logrus.Entry
	sleep    llm.Sleeper // backoff timer, replaced in tests
}

func NewHighlightsService(ats ATSClient, docs DocumentSource, provider llm.Provider, l *logrus.Logger) HighlightsService {
	return &highlightsService{
		ats:      ats,
		docs:     docs,
		provider: provider,
		log:      logger.For(l, "highlights"),
		sleep:    time.Sleep,
	}
}

type rankCandidate struct {
	app  models.Application
	text string
}

type batchWinner struct {
	cand    rankCandidate
	score   int
	summary string
}

func (h *highlightsService) Run(ctx context.Context, jobID int64, jobTitle string, topN int, sink progress.Sink) ([]models.HighlightedCandidate, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	sink.Emit(progress.Status{Phase: "fetching", Message: "Fetching applications"})
	apps, err := h.ats.FetchAllApplications(ctx, jobID, greenhouse.PageOpts{PerPage: 100, Status: "active"},
		func(page, running int) {
			sink.Emit(progress.Fetching{Page: page, Count: running})
		})
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return []models.HighlightedCandidate{}, nil
	}

	sink.Emit(progress.Status{Phase: "extracting", Message: fmt.Sprintf("Extracting %d resumes", len(apps))})
	candidates := h.extractAll(ctx, apps, sink)

	sink.Emit(progress.Status{Phase: "analyzing", Message: "Ranking candidates"})
	winners := h.runPhase1(ctx, candidates, topN, sink)
	if len(winners) == 0 {
		return []models.HighlightedCandidate{}, nil
	}

	sink.Emit(progress.Status{Phase: "analyzing", Message: fmt.Sprintf("Final ranking over %d finalists", len(winners))})
	return h.runPhase2(ctx, winners, jobTitle, topN)
}

// extractAll pulls resume text for every candidate in bounded parallel
// batches. Extraction failures degrade to empty text per candidate.
func (h *highlightsService) extractAll(ctx context.Context, apps []models.Application, sink progress.Sink) []rankCandidate {
	out := make([]rankCandidate, len(apps))

	var done int
	for start := 0; start < len(apps); start += extractConcurrency {
		end := start + extractConcurrency
		if end > len(apps) {
			end = len(apps)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				out[i] = rankCandidate{app: apps[i], text: h.docs.Text(gctx, apps[i].ResumeURL)}
				return nil
			})
		}
		_ = g.Wait()

		done = end
		sink.Emit(progress.Progress{
			Processed: done,
			Total:     len(apps),
			Percent:   progress.Pct(done, len(apps)),
		})
	}
	return out
}

// runPhase1 partitions candidates into fixed-size batches processed strictly
// sequentially, each batch asking for its share of winners. A batch whose
// response fails to parse contributes zero winners and never aborts the run.
func (h *highlightsService) runPhase1(ctx context.Context, candidates []rankCandidate, topN int, sink progress.Sink) []batchWinner {
	batchCount := (len(candidates) + rankBatchSize - 1) / rankBatchSize
	// Each batch asks for ceil(1.5*topN/batchCount) winners, oversized so the
	// final ranking has a buffer to drop from. Integer form keeps the ceiling
	// exact for small topN.
	perBatch := ceilDiv(3*topN, 2*batchCount)

	var winners []batchWinner
	for b := 0; b < batchCount; b++ {
		if ctx.Err() != nil {
			return winners
		}

		start := b * rankBatchSize
		end := start + rankBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		req := llm.Request{
			System: buildPhase1Prompt(perBatch),
			Blocks: []llm.Block{llm.TextBlock(renderCandidates(batch, phase1TextCap))},
		}
		raw, err := llm.WithRetry(ctx, llm.BatchPolicy, h.sleep, func(ctx context.Context) (string, error) {
			return h.provider.Complete(ctx, req)
		})
		if err != nil {
			h.log.WithError(err).WithField("batch", b+1).Warn("elimination batch failed, skipping")
			sink.Emit(progress.Batch{Index: b + 1, Total: batchCount, Winners: len(winners)})
			continue
		}

		picked, err := parseWinnerRows(raw)
		if err != nil {
			h.log.WithError(err).WithField("batch", b+1).Warn("elimination batch unparseable, skipping")
			sink.Emit(progress.Batch{Index: b + 1, Total: batchCount, Winners: len(winners)})
			continue
		}

		byID := make(map[int64]rankCandidate, len(batch))
		for _, c := range batch {
			byID[c.app.ID] = c
		}
		for _, w := range picked {
			c, ok := byID[w.ApplicationID]
			if !ok || w.Score < scoreFloor {
				continue
			}
			winners = append(winners, batchWinner{cand: c, score: w.Score, summary: w.Summary})
		}

		sink.Emit(progress.Batch{Index: b + 1, Total: batchCount, Winners: len(winners)})
	}
	return winners
}

// runPhase2 re-ranks the union of batch winners in a single call, then bands
// tiers purely from rank.
func (h *highlightsService) runPhase2(ctx context.Context, winners []batchWinner, jobTitle string, topN int) ([]models.HighlightedCandidate, error) {
	textCap := phase2TextCeil
	if byBudget := phase2PromptBudget / len(winners); byBudget < textCap {
		textCap = byBudget
	}

	finalists := make([]rankCandidate, len(winners))
	for i, w := range winners {
		finalists[i] = w.cand
	}

	req := llm.Request{
		System: buildPhase2Prompt(jobTitle, topN),
		Blocks: []llm.Block{llm.TextBlock(renderCandidates(finalists, textCap))},
	}
	raw, err := llm.WithRetry(ctx, llm.FinalPolicy, h.sleep, func(ctx context.Context) (string, error) {
		return h.provider.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	rows, err := parseRankedRows(raw)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]rankCandidate, len(finalists))
	for _, c := range finalists {
		byID[c.app.ID] = c
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })

	out := make([]models.HighlightedCandidate, 0, len(rows))
	for _, row := range rows {
		c, ok := byID[row.ApplicationID]
		if !ok {
			continue
		}
		rank := len(out) + 1 // dense, no gaps, regardless of model numbering
		out = append(out, models.HighlightedCandidate{
			Rank:          rank,
			ApplicationID: c.app.ID,
			CandidateID:   c.app.CandidateID,
			CandidateName: c.app.CandidateName,
			ProfileURL:    profileURL(c.app),
			Score:         row.Score,
			Summary:       row.Summary,
			Tier:          TierForRank(rank),
		})
		if len(out) == topN {
			break
		}
	}
	return out, nil
}

// TierForRank bands rank 1-10 top, 11-25 strong, 26+ good. The model's score
// plays no part in banding.
func TierForRank(rank int) string {
	switch {
	case rank <= 10:
		return "top"
	case rank <= 25:
		return "strong"
	default:
		return "good"
	}
}

func profileURL(app models.Application) string {
	return fmt.Sprintf("https://app.greenhouse.io/people/%d?application_id=%d", app.CandidateID, app.ID)
}

func buildPhase1Prompt(perBatch int) string {
	var sb strings.Builder
	sb.WriteString("You are screening job candidates. From the candidates in the message, pick the strongest ones.\n\n")
	sb.WriteString(fmt.Sprintf("Select UP TO %d candidates. Only include candidates you would score %d or above on a 0-100 scale.\n\n", perBatch, scoreFloor))
	sb.WriteString("Return ONLY a JSON array: ")
	sb.WriteString(`[{"application_id": <number>, "score": <0-100>, "summary": "<one sentence>"}]` + "\n")
	return sb.String()
}

func buildPhase2Prompt(jobTitle string, topN int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are producing the final ranking of finalists for the role: %s.\n\n", jobTitle))
	sb.WriteString(fmt.Sprintf("Rank the top %d candidates from strongest to weakest, rank 1 being the strongest.\n\n", topN))
	sb.WriteString("Return ONLY a JSON array: ")
	sb.WriteString(`[{"rank": <1..N>, "application_id": <number>, "score": <0-100>, "summary": "<one sentence>"}]` + "\n")
	return sb.String()
}

// renderCandidates lays the batch out as one text block, resume text capped
// per candidate to keep the prompt inside budget.
func renderCandidates(batch []rankCandidate, textCap int) string {
	var sb strings.Builder
	for i, c := range batch {
		if i > 0 {
			sb.WriteString(candidateDelimiter)
		}
		sb.WriteString(fmt.Sprintf("application_id=%d name=%s\n", c.app.ID, c.app.CandidateName))
		text := c.text
		if len(text) > textCap {
			text = text[:textCap]
		}
		if text != "" {
			sb.WriteString("RESUME:\n")
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		for _, a := range c.app.Answers {
			if strings.TrimSpace(a.Answer) == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", a.Question, a.Answer))
		}
	}
	return sb.String()
}

type winnerRow struct {
	ApplicationID int64
	Score         int
	Summary       string
}

type rankedRow struct {
	Rank          int
	ApplicationID int64
	Score         int
	Summary       string
}

func parseWinnerRows(raw string) ([]winnerRow, error) {
	rows, err := parseObjectArray(raw)
	if err != nil {
		return nil, err
	}
	out := make([]winnerRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, winnerRow{
			ApplicationID: asInt64(r["application_id"]),
			Score:         asInt(r["score"]),
			Summary:       asString(r["summary"]),
		})
	}
	return out, nil
}

func parseRankedRows(raw string) ([]rankedRow, error) {
	rows, err := parseObjectArray(raw)
	if err != nil {
		return nil, err
	}
	out := make([]rankedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, rankedRow{
			Rank:          asInt(r["rank"]),
			ApplicationID: asInt64(r["application_id"]),
			Score:         asInt(r["score"]),
			Summary:       asString(r["summary"]),
		})
	}
	return out, nil
}

func parseObjectArray(raw string) ([]map[string]any, error) {
	unwrapped := stripFence(raw)
	var rows []map[string]any
	if err := json.Unmarshal([]byte(unwrapped), &rows); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	return rows, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
