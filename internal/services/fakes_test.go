package services

import (
	"context"
	"errors"
	"sync"

	"github.com/screenpilot/screenpilot/internal/extract"
	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/providers/llm"
)

type fakeATS struct {
	jobs    []models.Job
	stages  []models.Stage
	reasons []models.RejectionReason
	apps    []models.Application

	mu         sync.Mutex
	rejectErr  map[int64]error
	rejected   []int64
	advanced   []int64
	fetchPages [][]models.Application
}

func (f *fakeATS) ListJobs(context.Context) ([]models.Job, error) { return f.jobs, nil }
func (f *fakeATS) ListStages(_ context.Context, _ int64) ([]models.Stage, error) {
	return f.stages, nil
}
func (f *fakeATS) ListRejectionReasons(context.Context) ([]models.RejectionReason, error) {
	return f.reasons, nil
}

func (f *fakeATS) ListApplicationsPage(_ context.Context, _ int64, _ greenhouse.PageOpts) (models.ApplicationPage, error) {
	return models.ApplicationPage{Applications: f.apps, Total: len(f.apps)}, nil
}

func (f *fakeATS) ListApplicationsPageLightweight(_ context.Context, _ int64, _ greenhouse.PageOpts) (models.ApplicationPage, error) {
	return models.ApplicationPage{Applications: f.apps, Total: len(f.apps)}, nil
}

func (f *fakeATS) FetchAllApplications(_ context.Context, _ int64, _ greenhouse.PageOpts, onPage func(int, int)) ([]models.Application, error) {
	if f.fetchPages != nil {
		var all []models.Application
		for i, p := range f.fetchPages {
			all = append(all, p...)
			if onPage != nil {
				onPage(i+1, len(all))
			}
		}
		return all, nil
	}
	if onPage != nil {
		onPage(1, len(f.apps))
	}
	return f.apps, nil
}

func (f *fakeATS) RejectApplication(_ context.Context, id, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.rejectErr[id]; ok {
		return err
	}
	f.rejected = append(f.rejected, id)
	return nil
}

func (f *fakeATS) AdvanceApplication(_ context.Context, id, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanced = append(f.advanced, id)
	return nil
}

type fakeDocs struct {
	texts map[string]string
	pdfs  map[string][]byte
}

func (f *fakeDocs) Fetch(_ context.Context, url string) *extract.Document {
	if b, ok := f.pdfs[url]; ok {
		return &extract.Document{Bytes: b, MIME: "application/pdf", IsPDF: true}
	}
	if t, ok := f.texts[url]; ok {
		return &extract.Document{Bytes: []byte(t), Text: t, MIME: "text/plain"}
	}
	return nil
}

func (f *fakeDocs) Text(_ context.Context, url string) string {
	return f.texts[url]
}

// fakeProvider replays canned responses in call order and records requests.
type fakeProvider struct {
	responses []string
	errs      []error
	requests  []llm.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("fakeProvider: no response configured")
}
