package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/index"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/progress"
)

const indexExtractBatch = 25

type IndexerService interface {
	// Rebuild replaces a job's index from scratch: clear, fetch every
	// active application, extract resume text, embed and upsert.
	Rebuild(ctx context.Context, jobID int64, sink progress.Sink) (models.IndexStatus, error)
	Search(ctx context.Context, jobID int64, query string, limit int) ([]models.SearchHit, error)
	Status(jobID int64) models.IndexStatus
	Clear(jobID int64) error
	Ready() bool
}

type indexerService struct {
	ats  ATSClient
	docs DocumentSource
	idx  *index.Index
	log  *logrus.Entry
}

func NewIndexerService(ats ATSClient, docs DocumentSource, idx *index.Index, l *logrus.Logger) IndexerService {
	return &indexerService{ats: ats, docs: docs, idx: idx, log: logger.For(l, "indexer")}
}

func (s *indexerService) Rebuild(ctx context.Context, jobID int64, sink progress.Sink) (models.IndexStatus, error) {
	const op = "IndexerService.Rebuild"

	sink.Emit(progress.Status{Phase: "fetching", Message: "Fetching applications"})

	jobTitle := s.jobTitle(ctx, jobID)

	apps, err := s.ats.FetchAllApplications(ctx, jobID, greenhouse.PageOpts{PerPage: 100, Status: "active"},
		func(page, running int) {
			sink.Emit(progress.Fetching{Page: page, Count: running})
		})
	if err != nil {
		return models.IndexStatus{}, err
	}

	// Full replacement: the old index file goes away before the first upsert.
	if err := s.idx.Clear(jobID); err != nil {
		return models.IndexStatus{}, err
	}

	sink.Emit(progress.Status{Phase: "extracting", Message: fmt.Sprintf("Indexing %d applications", len(apps))})

	var done int
	for start := 0; start < len(apps); start += indexExtractBatch {
		if err := ctx.Err(); err != nil {
			return s.idx.Status(jobID), err
		}

		end := start + indexExtractBatch
		if end > len(apps) {
			end = len(apps)
		}

		texts := make([]string, end-start)
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				texts[i-start] = s.docs.Text(gctx, apps[i].ResumeURL)
				return nil
			})
		}
		_ = g.Wait()

		for i := start; i < end; i++ {
			app := apps[i]
			if err := s.idx.IndexCandidate(ctx, jobID, jobTitle, app.ID, app.CandidateName, texts[i-start], app.Answers); err != nil {
				// One candidate failing to embed degrades the index, not the run.
				s.log.WithError(err).WithField("application_id", app.ID).Warn("index candidate failed")
			}
			done++
			sink.Emit(progress.Progress{
				Processed: done,
				Total:     len(apps),
				Percent:   progress.Pct(done, len(apps)),
				Current:   app.CandidateName,
			})
		}
	}

	return s.idx.Status(jobID), nil
}

func (s *indexerService) jobTitle(ctx context.Context, jobID int64) string {
	jobs, err := s.ats.ListJobs(ctx)
	if err != nil {
		return ""
	}
	for _, j := range jobs {
		if j.ID == jobID {
			return j.Name
		}
	}
	return ""
}

func (s *indexerService) Search(ctx context.Context, jobID int64, query string, limit int) ([]models.SearchHit, error) {
	return s.idx.Search(ctx, jobID, query, limit)
}

func (s *indexerService) Status(jobID int64) models.IndexStatus {
	return s.idx.Status(jobID)
}

func (s *indexerService) Clear(jobID int64) error {
	return s.idx.Clear(jobID)
}

func (s *indexerService) Ready() bool {
	return s.idx.Ready()
}
