package services

import (
	"context"

	"github.com/screenpilot/screenpilot/internal/extract"
	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/models"
)

// ATSClient is the slice of the Harvest client the services consume.
// *greenhouse.Client satisfies it; tests substitute fakes.
type ATSClient interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListStages(ctx context.Context, jobID int64) ([]models.Stage, error)
	ListRejectionReasons(ctx context.Context) ([]models.RejectionReason, error)
	ListApplicationsPage(ctx context.Context, jobID int64, opts greenhouse.PageOpts) (models.ApplicationPage, error)
	ListApplicationsPageLightweight(ctx context.Context, jobID int64, opts greenhouse.PageOpts) (models.ApplicationPage, error)
	FetchAllApplications(ctx context.Context, jobID int64, opts greenhouse.PageOpts, onPage func(page, running int)) ([]models.Application, error)
	RejectApplication(ctx context.Context, applicationID, reasonID int64, emailTemplateID string) error
	AdvanceApplication(ctx context.Context, applicationID, fromStageID int64) error
}

// DocumentSource fetches and extracts attachments. *extract.Extractor
// satisfies it.
type DocumentSource interface {
	Fetch(ctx context.Context, url string) *extract.Document
	Text(ctx context.Context, url string) string
}
