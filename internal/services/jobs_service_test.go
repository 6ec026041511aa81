package services

import (
	"context"
	"testing"

	"github.com/screenpilot/screenpilot/internal/cache"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
)

type countingATS struct {
	fakeATS
	jobCalls   int
	stageCalls int
}

func (c *countingATS) ListJobs(ctx context.Context) ([]models.Job, error) {
	c.jobCalls++
	return c.fakeATS.ListJobs(ctx)
}

func (c *countingATS) ListStages(ctx context.Context, jobID int64) ([]models.Stage, error) {
	c.stageCalls++
	return c.fakeATS.ListStages(ctx, jobID)
}

func TestJobsListCached(t *testing.T) {
	ats := &countingATS{fakeATS: fakeATS{jobs: []models.Job{{ID: 1, Name: "Engineer", Status: "open"}}}}
	svc := NewJobsService(ats, cache.NewMemory(), logger.New())

	for i := 0; i < 3; i++ {
		jobs, err := svc.List(context.Background())
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(jobs) != 1 || jobs[0].Name != "Engineer" {
			t.Fatalf("jobs = %+v", jobs)
		}
	}
	if ats.jobCalls != 1 {
		t.Errorf("expected 1 upstream call under cache, got %d", ats.jobCalls)
	}
}

func TestStagesCachedPerJob(t *testing.T) {
	ats := &countingATS{fakeATS: fakeATS{stages: []models.Stage{{ID: 10, Name: "Application Review"}}}}
	svc := NewJobsService(ats, cache.NewMemory(), logger.New())

	for _, jobID := range []int64{1, 1, 2} {
		if _, err := svc.Stages(context.Background(), jobID); err != nil {
			t.Fatalf("Stages(%d): %v", jobID, err)
		}
	}
	if ats.stageCalls != 2 {
		t.Errorf("expected one upstream call per distinct job, got %d", ats.stageCalls)
	}
}

func TestReviewStageLookup(t *testing.T) {
	ats := &countingATS{fakeATS: fakeATS{stages: []models.Stage{
		{ID: 10, Name: "Offer"},
		{ID: 11, Name: "Application Review"},
	}}}
	svc := NewJobsService(ats, cache.NewMemory(), logger.New())

	stage, ok, err := svc.ReviewStage(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReviewStage: %v", err)
	}
	if !ok || stage.ID != 11 {
		t.Errorf("stage = %+v ok=%v, want the review stage", stage, ok)
	}
}
