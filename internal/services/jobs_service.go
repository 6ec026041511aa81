package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/screenpilot/screenpilot/internal/cache"
	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
)

const jobsCacheTTL = 5 * time.Minute

type JobsService interface {
	List(ctx context.Context) ([]models.Job, error)
	Stages(ctx context.Context, jobID int64) ([]models.Stage, error)
	// ReviewStage finds the job's "Application Review" stage, matched by
	// case-insensitive substring.
	ReviewStage(ctx context.Context, jobID int64) (models.Stage, bool, error)
}

type jobsService struct {
	ats   ATSClient
	cache cache.Cache
	log   *logrus.Entry
}

func NewJobsService(ats ATSClient, c cache.Cache, l *logrus.Logger) JobsService {
	return &jobsService{ats: ats, cache: c, log: logger.For(l, "jobs")}
}

func (s *jobsService) List(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if hit, _ := s.cache.GetJSON(ctx, "jobs", &jobs); hit {
		return jobs, nil
	}
	jobs, err := s.ats.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, "jobs", jobs, jobsCacheTTL)
	return jobs, nil
}

func (s *jobsService) Stages(ctx context.Context, jobID int64) ([]models.Stage, error) {
	key := fmt.Sprintf("stages:%d", jobID)
	var stages []models.Stage
	if hit, _ := s.cache.GetJSON(ctx, key, &stages); hit {
		return stages, nil
	}
	stages, err := s.ats.ListStages(ctx, jobID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, stages, jobsCacheTTL)
	return stages, nil
}

func (s *jobsService) ReviewStage(ctx context.Context, jobID int64) (models.Stage, bool, error) {
	stages, err := s.Stages(ctx, jobID)
	if err != nil {
		return models.Stage{}, false, err
	}
	stage, ok := greenhouse.FindReviewStage(stages)
	return stage, ok, nil
}
