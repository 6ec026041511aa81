package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's c.Stream
// requires, which httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestWriteErrorMapsAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   utils.Code
	}{
		{"invalid argument", utils.E(utils.CodeInvalidArgument, "Op", "bad input", nil), http.StatusBadRequest, utils.CodeInvalidArgument},
		{"rate limited", utils.E(utils.CodeRateLimited, "Op", "slow down", nil), http.StatusTooManyRequests, utils.CodeRateLimited},
		{"upstream", utils.EStatus(utils.CodeUpstream, "Op", "harvest said 403", 403, nil), http.StatusBadGateway, utils.CodeUpstream},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, utils.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body APIError
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestWriteErrorCarriesUpstreamStatus(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, utils.EStatus(utils.CodeUpstream, "Op", "denied", 403, nil))

	var body APIError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.Status != 403 {
		t.Errorf("upstream_status = %d, want 403", body.Status)
	}
}

func TestStreamEventsTerminatesWithComplete(t *testing.T) {
	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		streamEvents(c, func(sink progress.Sink) (any, error) {
			sink(progress.Status{Phase: "fetching", Message: "starting"})
			sink(progress.Progress{Processed: 1, Total: 2, Percent: 50})
			return models.IndexStatus{Exists: true, Records: 2}, nil
		})
	})

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	r.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"event:status", "event:progress", "event:complete"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "event:error") {
		t.Errorf("unexpected error event:\n%s", body)
	}
	// Complete is the terminal event.
	if strings.LastIndex(body, "event:complete") < strings.LastIndex(body, "event:progress") {
		t.Errorf("complete must come last:\n%s", body)
	}
}

func TestStreamEventsTerminatesWithError(t *testing.T) {
	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		streamEvents(c, func(sink progress.Sink) (any, error) {
			sink(progress.Status{Phase: "fetching", Message: "starting"})
			return nil, utils.E(utils.CodeUpstream, "Op", "harvest unreachable", nil)
		})
	})

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	r.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "event:error") {
		t.Errorf("stream must end with an error event:\n%s", body)
	}
	if strings.Contains(body, "event:complete") {
		t.Errorf("error and complete are mutually exclusive:\n%s", body)
	}
}

// stubApplications echoes every requested rejection back as succeeded.
type stubApplications struct{}

func (stubApplications) Page(context.Context, int64, greenhouse.PageOpts) (models.ApplicationPage, error) {
	return models.ApplicationPage{}, nil
}

func (stubApplications) PageLightweight(context.Context, int64, greenhouse.PageOpts) (models.ApplicationPage, error) {
	return models.ApplicationPage{}, nil
}

func (stubApplications) BulkReject(_ context.Context, ids []int64, _ int64, _ string) (models.BulkRejectResult, error) {
	return models.BulkRejectResult{Rejected: ids, Failed: []int64{}}, nil
}

func (stubApplications) Advance(context.Context, int64, int64) error { return nil }

func (stubApplications) RejectionReasons(context.Context) ([]models.RejectionReason, error) {
	return nil, nil
}

func TestBulkRejectEndpoint(t *testing.T) {
	// Covered at the service layer; here we only pin the request wiring.
	h := NewApplicationsHandler(stubApplications{})
	r := gin.New()
	r.POST("/applications/bulk-reject", h.BulkReject)

	payload := `{"application_ids":[1,2,3],"rejection_reason_id":7}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/applications/bulk-reject", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out models.BulkRejectResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(out.Rejected) != 3 {
		t.Errorf("rejected = %v, want all three", out.Rejected)
	}
}
