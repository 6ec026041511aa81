package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/screenpilot/screenpilot/config"
	"github.com/screenpilot/screenpilot/internal/utils"
)

const (
	defaultMaxTokens = 8192
	requestTimeout   = 10 * time.Minute
)

type Claude struct {
	cfg *config.Store
}

func NewClaude(cfg *config.Store) *Claude {
	return &Claude{cfg: cfg}
}

// Complete issues one messages call. The SDK's built-in retries are disabled;
// the pipeline-level retry wrapper owns that policy.
func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	const op = "Claude.Complete"

	snap := c.cfg.Snapshot()
	if snap.AnthropicAPIKey == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "anthropic api key is not configured", nil)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(snap.AnthropicAPIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(requestTimeout),
	)

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		if b.IsDocument() {
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
				Data: base64.StdEncoding.EncodeToString(b.Document),
			}))
			continue
		}
		blocks = append(blocks, anthropic.NewTextBlock(b.Text))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(snap.AnthropicModel),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", classifyAnthropicErr(op, err)
	}

	for _, blk := range msg.Content {
		if blk.Type == "text" && blk.Text != "" {
			return blk.Text, nil
		}
	}
	return "", utils.E(utils.CodeUpstream, op, "response contained no text block", nil)
}

func classifyAnthropicErr(op string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		msg := fmt.Sprintf("anthropic returned %d", apierr.StatusCode)
		switch apierr.StatusCode {
		case 429:
			return utils.EStatus(utils.CodeRateLimited, op, msg, apierr.StatusCode, err)
		default:
			return utils.EStatus(utils.CodeUpstream, op, msg, apierr.StatusCode, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.E(utils.CodeTimeout, op, "anthropic request timed out", err)
	}
	// Connection resets and other transport failures land here.
	return utils.E(utils.CodeUnavailable, op, "anthropic request failed", err)
}
