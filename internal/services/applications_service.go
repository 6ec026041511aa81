package services

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/utils"
)

const bulkRejectConcurrency = 5

type ApplicationsService interface {
	Page(ctx context.Context, jobID int64, opts greenhouse.PageOpts) (models.ApplicationPage, error)
	PageLightweight(ctx context.Context, jobID int64, opts greenhouse.PageOpts) (models.ApplicationPage, error)
	// BulkReject attempts every rejection independently and concurrently;
	// the result is a rejected/failed split, never an error for partial
	// failure.
	BulkReject(ctx context.Context, ids []int64, reasonID int64, emailTemplateID string) (models.BulkRejectResult, error)
	Advance(ctx context.Context, applicationID, fromStageID int64) error
	RejectionReasons(ctx context.Context) ([]models.RejectionReason, error)
}

type applicationsService struct {
	ats ATSClient
	log *logrus.Entry
}

func NewApplicationsService(ats ATSClient, l *logrus.Logger) ApplicationsService {
	return &applicationsService{ats: ats, log: logger.For(l, "applications")}
}

func (s *applicationsService) Page(ctx context.Context, jobID int64, opts greenhouse.PageOpts) (models.ApplicationPage, error) {
	const op = "ApplicationsService.Page"
	if jobID == 0 {
		return models.ApplicationPage{}, utils.E(utils.CodeInvalidArgument, op, "job_id is required", nil)
	}
	return s.ats.ListApplicationsPage(ctx, jobID, opts)
}

func (s *applicationsService) PageLightweight(ctx context.Context, jobID int64, opts greenhouse.PageOpts) (models.ApplicationPage, error) {
	const op = "ApplicationsService.PageLightweight"
	if jobID == 0 {
		return models.ApplicationPage{}, utils.E(utils.CodeInvalidArgument, op, "job_id is required", nil)
	}
	return s.ats.ListApplicationsPageLightweight(ctx, jobID, opts)
}

func (s *applicationsService) BulkReject(ctx context.Context, ids []int64, reasonID int64, emailTemplateID string) (models.BulkRejectResult, error) {
	const op = "ApplicationsService.BulkReject"

	if len(ids) == 0 {
		return models.BulkRejectResult{}, utils.E(utils.CodeInvalidArgument, op, "no application ids supplied", nil)
	}
	if reasonID == 0 {
		return models.BulkRejectResult{}, utils.E(utils.CodeInvalidArgument, op, "rejection reason is required", nil)
	}

	var mu sync.Mutex
	result := models.BulkRejectResult{Rejected: []int64{}, Failed: []int64{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkRejectConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := s.ats.RejectApplication(gctx, id, reasonID, emailTemplateID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.WithError(err).WithField("application_id", id).Warn("reject failed")
				result.Failed = append(result.Failed, id)
				return nil
			}
			result.Rejected = append(result.Rejected, id)
			return nil
		})
	}
	_ = g.Wait()

	// Deterministic output regardless of completion order.
	sort.Slice(result.Rejected, func(i, j int) bool { return result.Rejected[i] < result.Rejected[j] })
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i] < result.Failed[j] })
	return result, nil
}

func (s *applicationsService) Advance(ctx context.Context, applicationID, fromStageID int64) error {
	const op = "ApplicationsService.Advance"
	if applicationID == 0 || fromStageID == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "application_id and from_stage_id are required", nil)
	}
	return s.ats.AdvanceApplication(ctx, applicationID, fromStageID)
}

func (s *applicationsService) RejectionReasons(ctx context.Context) ([]models.RejectionReason, error) {
	return s.ats.ListRejectionReasons(ctx)
}
