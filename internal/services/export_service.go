package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/screenpilot/screenpilot/internal/greenhouse"
	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/progress"
	"github.com/screenpilot/screenpilot/internal/utils"
)

type ExportService interface {
	// Export writes every application of a job to an XLSX workbook under
	// the data dir and returns the file name.
	Export(ctx context.Context, jobID int64, sink progress.Sink) (string, error)
}

type exportService struct {
	ats     ATSClient
	dataDir func() string
	log     *logrus.Entry
}

func NewExportService(ats ATSClient, dataDir func() string, l *logrus.Logger) ExportService {
	return &exportService{ats: ats, dataDir: dataDir, log: logger.For(l, "export")}
}

var exportHeaders = []string{"Application ID", "Candidate", "Applied At", "Stage", "Resume URL", "Cover Letter URL", "Answers"}

func (s *exportService) Export(ctx context.Context, jobID int64, sink progress.Sink) (string, error) {
	const op = "ExportService.Export"

	sink.Emit(progress.Status{Phase: "fetching", Message: "Fetching applications"})

	// Lightweight path: export volume makes per-candidate enrichment
	// prohibitively request-hungry.
	apps, err := s.ats.FetchAllApplications(ctx, jobID, greenhouse.PageOpts{PerPage: 100},
		func(page, running int) {
			sink.Emit(progress.Fetching{Page: page, Count: running})
		})
	if err != nil {
		return "", err
	}

	sink.Emit(progress.Status{Phase: "processing", Message: fmt.Sprintf("Writing %d rows", len(apps))})

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Applications"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to create sheet", err)
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	for col, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if headerStyle != 0 {
		last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
		_ = f.SetCellStyle(sheet, "A1", last, headerStyle)
	}
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "E", "G", 40)

	for i, app := range apps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		row := i + 2
		answers := make([]string, 0, len(app.Answers))
		for _, a := range app.Answers {
			answers = append(answers, fmt.Sprintf("%s: %s", a.Question, a.Answer))
		}
		values := []any{
			app.ID,
			app.CandidateName,
			app.AppliedAt.Format(time.RFC3339),
			app.StageName,
			app.ResumeURL,
			app.CoverLetterURL,
			strings.Join(answers, "\n"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		if (i+1)%50 == 0 || i+1 == len(apps) {
			sink.Emit(progress.Progress{
				Processed: i + 1,
				Total:     len(apps),
				Percent:   progress.Pct(i+1, len(apps)),
			})
		}
	}

	dir := filepath.Join(s.dataDir(), "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to create export dir", err)
	}
	name := fmt.Sprintf("applications-%d-%s.xlsx", jobID, time.Now().UTC().Format("20060102-150405"))
	if err := f.SaveAs(filepath.Join(dir, name)); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to write workbook", err)
	}

	s.log.WithFields(logrus.Fields{"job_id": jobID, "rows": len(apps), "file": name}).Info("export written")
	return name, nil
}

// ExportPath resolves a previously written export file name inside the data
// dir, refusing path escapes.
func ExportPath(dataDir, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return "", utils.E(utils.CodeInvalidArgument, "ExportPath", "invalid export file name", nil)
	}
	return filepath.Join(dataDir, "exports", name), nil
}
