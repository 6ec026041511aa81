package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/providers/llm"
	"github.com/screenpilot/screenpilot/internal/utils"
)

const (
	// MaxScreeningBatch keeps one call inside the model's attachment and
	// context limits.
	MaxScreeningBatch = 5
	// maxFeedback bounds the calibration section to the most recent
	// disagreements.
	maxFeedback = 10

	candidateDelimiter = "\n\n========== CANDIDATE BOUNDARY ==========\n\n"
)

// ScreeningInput is one screening invocation: a bounded batch of candidates
// plus job context and optional calibration feedback.
type ScreeningInput struct {
	JobTitle     string                        `json:"job_title"`
	Requirements string                        `json:"requirements"`
	Candidates   []models.Application          `json:"candidates"`
	Feedback     []models.DisagreementFeedback `json:"feedback,omitempty"`
}

type ScreeningService interface {
	Screen(ctx context.Context, in ScreeningInput) (models.ScreeningOutcome, error)
}

type screeningService struct {
	provider llm.Provider
	docs     DocumentSource
	log      *logrus.Entry
	sleep    llm.Sleeper // backoff timer, replaced in tests
}

func NewScreeningService(provider llm.Provider, docs DocumentSource, l *logrus.Logger) ScreeningService {
	return &screeningService{
		provider: provider,
		docs:     docs,
		log:      logger.For(l, "screening"),
		sleep:    time.Sleep,
	}
}

func (s *screeningService) Screen(ctx context.Context, in ScreeningInput) (models.ScreeningOutcome, error) {
	const op = "ScreeningService.Screen"

	if len(in.Candidates) == 0 {
		return models.ScreeningOutcome{}, utils.E(utils.CodeInvalidArgument, op, "no candidates supplied", nil)
	}
	if len(in.Candidates) > MaxScreeningBatch {
		return models.ScreeningOutcome{}, utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("at most %d candidates per screening call", MaxScreeningBatch), nil)
	}

	blocks := s.buildCandidateBlocks(ctx, in.Candidates)
	req := llm.Request{
		System: buildScreeningSystemPrompt(in),
		Blocks: blocks,
	}

	raw, err := llm.WithRetry(ctx, llm.BatchPolicy, s.sleep, func(ctx context.Context) (string, error) {
		return s.provider.Complete(ctx, req)
	})
	if err != nil {
		return models.ScreeningOutcome{}, err
	}

	ids := make([]int64, len(in.Candidates))
	for i, c := range in.Candidates {
		ids[i] = c.ID
	}
	outcome, err := parseScreeningResponse(raw, ids)
	if err != nil {
		return models.ScreeningOutcome{}, err
	}
	if len(outcome.MissingIDs) > 0 {
		s.log.WithField("missing_ids", outcome.MissingIDs).Warn("model omitted verdicts")
	}
	return outcome, nil
}

func buildScreeningSystemPrompt(in ScreeningInput) string {
	var sb strings.Builder

	sb.WriteString("You are a recruiting screener reviewing job applications.\n\n")
	sb.WriteString(fmt.Sprintf("JOB TITLE: %s\n\n", in.JobTitle))
	if in.Requirements != "" {
		sb.WriteString("JOB REQUIREMENTS:\n")
		sb.WriteString(in.Requirements)
		sb.WriteString("\n\n")
	}

	fb := in.Feedback
	if len(fb) > maxFeedback {
		fb = fb[len(fb)-maxFeedback:]
	}
	if len(fb) > 0 {
		sb.WriteString("CALIBRATION: recent cases where the reviewer disagreed with your recommendation. Adjust your strictness accordingly:\n")
		for _, f := range fb {
			sb.WriteString(fmt.Sprintf("- %s: you said %q, reviewer decided %q. Reason: %s\n",
				f.CandidateName, f.Recommendation, f.Decision, f.Reason))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("For EVERY candidate in the message, return one JSON object with exactly these fields:\n")
	sb.WriteString(`{"application_id": <number>, "recommendation": "advance"|"reject", "confidence": "high"|"medium"|"low", "summary": "<one sentence>", "strengths": ["..."], "concerns": ["..."], "reasoning": "<short paragraph>"}` + "\n\n")
	sb.WriteString("Return ONLY a JSON array of these objects, no additional text.\n")
	return sb.String()
}

// buildCandidateBlocks assembles the user message: per candidate a header,
// the resume (as an inline PDF when possible, extracted text otherwise), the
// cover letter, and the form answers, separated by an explicit delimiter.
func (s *screeningService) buildCandidateBlocks(ctx context.Context, candidates []models.Application) []llm.Block {
	var blocks []llm.Block

	for i, app := range candidates {
		if i > 0 {
			blocks = append(blocks, llm.TextBlock(candidateDelimiter))
		}
		blocks = append(blocks, llm.TextBlock(fmt.Sprintf("CANDIDATE application_id=%d name=%s", app.ID, app.CandidateName)))

		blocks = append(blocks, s.attachmentBlocks(ctx, "RESUME", app.ResumeURL, app.CandidateName)...)
		blocks = append(blocks, s.attachmentBlocks(ctx, "COVER LETTER", app.CoverLetterURL, app.CandidateName)...)

		if len(app.Answers) > 0 {
			var qa strings.Builder
			qa.WriteString("APPLICATION ANSWERS:\n")
			for _, a := range app.Answers {
				qa.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", a.Question, a.Answer))
			}
			blocks = append(blocks, llm.TextBlock(qa.String()))
		}
	}
	return blocks
}

func (s *screeningService) attachmentBlocks(ctx context.Context, label, url, name string) []llm.Block {
	if url == "" {
		return nil
	}
	doc := s.docs.Fetch(ctx, url)
	if doc == nil {
		s.log.WithFields(logrus.Fields{"candidate": name, "kind": label}).Debug("attachment unavailable")
		return []llm.Block{llm.TextBlock(label + ": (unavailable)")}
	}
	if doc.IsPDF {
		return []llm.Block{
			llm.TextBlock(label + " (attached as PDF):"),
			llm.DocumentBlock(doc.Bytes),
		}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return []llm.Block{llm.TextBlock(label + ": (no text extracted)")}
	}
	return []llm.Block{llm.TextBlock(label + ":\n" + doc.Text)}
}
