// Package greenhouse wraps the Harvest API: auth, pagination, rate-limit
// backoff, and shaping of upstream rows into internal records.
package greenhouse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/screenpilot/screenpilot/config"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/utils"
)

const (
	maxRetries  = 5
	baseBackoff = 1 * time.Second
	maxBackoff  = 30 * time.Second

	jobsPageSize = 500
)

type Client struct {
	cfg  *config.Store
	http *http.Client
	log  *logrus.Entry

	// sleep is swappable so backoff is testable without real timers.
	sleep func(time.Duration)
}

func NewClient(cfg *config.Store, l *logrus.Logger) *Client {
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   logger.For(l, "greenhouse"),
		sleep: time.Sleep,
	}
}

// do issues one Harvest request with basic auth and the impersonation header,
// retrying 429s with exponential backoff. Non-2xx other than 429 surfaces
// immediately as a classified failure carrying the upstream status and body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, http.Header, error) {
	const op = "greenhouse.do"

	snap := c.cfg.Snapshot()
	if snap.GreenhouseAPIKey == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "greenhouse api key is not configured", nil)
	}

	u := strings.TrimRight(snap.GreenhouseBase, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, utils.E(utils.CodeInternal, op, "failed to encode request body", err)
		}
		payload = b
	}

	delay := baseBackoff
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, nil, utils.E(utils.CodeInternal, op, "failed to build request", err)
		}
		req.Header.Set("Authorization", "Basic "+basicAuth(snap.GreenhouseAPIKey))
		if snap.GreenhouseUserID != "" {
			req.Header.Set("On-Behalf-Of", snap.GreenhouseUserID)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, utils.E(utils.CodeTimeout, op, "request cancelled", ctx.Err())
			}
			return nil, nil, utils.E(utils.CodeUnavailable, op, "greenhouse request failed", err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, nil, utils.E(utils.CodeUnavailable, op, "failed to read response", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= maxRetries {
				return nil, nil, utils.EStatus(utils.CodeRateLimited, op, "rate limited after retries", resp.StatusCode, nil)
			}
			c.log.WithFields(logrus.Fields{"attempt": attempt + 1, "delay_ms": delay.Milliseconds(), "path": path}).
				Warn("rate limited, backing off")
			c.sleep(delay)
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg := fmt.Sprintf("greenhouse returned %d: %s", resp.StatusCode, truncate(string(respBody), 300))
			return nil, nil, utils.EStatus(utils.CodeUpstream, op, msg, resp.StatusCode, nil)
		}

		return respBody, resp.Header, nil
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) (http.Header, error) {
	body, header, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return nil, utils.E(utils.CodeUpstream, "greenhouse.getJSON", "malformed upstream response", err)
	}
	return header, nil
}

// ListJobs returns every job, mapped to the internal shape.
func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(jobsPageSize))

	var rows []ghJob
	if _, err := c.getJSON(ctx, "/jobs", q, &rows); err != nil {
		return nil, err
	}

	jobs := make([]models.Job, 0, len(rows))
	for _, r := range rows {
		j := models.Job{ID: r.ID, Name: r.Name, Status: r.Status}
		if len(r.Departments) > 0 {
			j.Department = r.Departments[0].Name
		}
		for _, o := range r.Offices {
			j.Offices = append(j.Offices, o.Name)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// ListStages returns a job's stages, unmodified passthrough.
func (c *Client) ListStages(ctx context.Context, jobID int64) ([]models.Stage, error) {
	var rows []ghStage
	if _, err := c.getJSON(ctx, fmt.Sprintf("/jobs/%d/stages", jobID), nil, &rows); err != nil {
		return nil, err
	}
	stages := make([]models.Stage, 0, len(rows))
	for _, r := range rows {
		jid := r.JobID
		if jid == 0 {
			jid = jobID
		}
		stages = append(stages, models.Stage{ID: r.ID, Name: r.Name, Priority: r.Priority, JobID: jid})
	}
	return stages, nil
}

// ListRejectionReasons returns the rejection reason lookup.
func (c *Client) ListRejectionReasons(ctx context.Context) ([]models.RejectionReason, error) {
	q := url.Values{}
	q.Set("per_page", "100")

	var rows []ghRejectionReason
	if _, err := c.getJSON(ctx, "/rejection_reasons", q, &rows); err != nil {
		return nil, err
	}
	reasons := make([]models.RejectionReason, 0, len(rows))
	for _, r := range rows {
		reasons = append(reasons, models.RejectionReason{ID: r.ID, Name: r.Name})
	}
	return reasons, nil
}

// RejectApplication moves an application to rejected. Not idempotent upstream;
// callers must not blindly retry.
func (c *Client) RejectApplication(ctx context.Context, applicationID, reasonID int64, emailTemplateID string) error {
	body := map[string]any{"rejection_reason_id": reasonID}
	if emailTemplateID != "" {
		body["rejection_email"] = map[string]any{"email_template_id": emailTemplateID}
	}
	_, _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/applications/%d/reject", applicationID), nil, body)
	return err
}

// AdvanceApplication moves an application out of the given stage.
func (c *Client) AdvanceApplication(ctx context.Context, applicationID, fromStageID int64) error {
	body := map[string]any{"from_stage_id": fromStageID}
	_, _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/applications/%d/advance", applicationID), nil, body)
	return err
}

// FindReviewStage locates the "Application Review" stage by case-insensitive
// substring match; stage IDs carry no stable contract across jobs.
func FindReviewStage(stages []models.Stage) (models.Stage, bool) {
	for _, s := range stages {
		if strings.Contains(strings.ToLower(s.Name), "application review") {
			return s, true
		}
	}
	return models.Stage{}, false
}

var lastPageRe = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// parseLastPage pulls the rel="last" page number out of a Link header.
// Returns 0 when the header is absent or unparseable.
func parseLastPage(h http.Header) int {
	link := h.Get("Link")
	if link == "" {
		return 0
	}
	for _, part := range strings.Split(link, ",") {
		m := lastPageRe.FindStringSubmatch(part)
		if m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

func basicAuth(apiKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(apiKey + ":"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
