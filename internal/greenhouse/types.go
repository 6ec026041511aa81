package greenhouse

import (
	"time"

	"github.com/screenpilot/screenpilot/internal/models"
)

// Harvest wire shapes. Only the fields we read are declared.

type ghNamed struct {
	Name string `json:"name"`
}

type ghJob struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Departments []ghNamed `json:"departments"`
	Offices     []ghNamed `json:"offices"`
}

type ghStage struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	JobID    int64  `json:"job_id"`
}

type ghAttachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Type     string `json:"type"` // resume | cover_letter | ...
}

type ghAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ghApplication struct {
	ID          int64 `json:"id"`
	CandidateID int64 `json:"candidate_id"`
	Candidate   struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"candidate"`
	AppliedAt    time.Time `json:"applied_at"`
	CurrentStage struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"current_stage"`
	Attachments []ghAttachment `json:"attachments"`
	Answers     []ghAnswer     `json:"answers"`
}

type ghContact struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type ghCandidate struct {
	ID             int64          `json:"id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	EmailAddresses []ghContact    `json:"email_addresses"`
	PhoneNumbers   []ghContact    `json:"phone_numbers"`
	Attachments    []ghAttachment `json:"attachments"`
}

type ghRejectionReason struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (a ghApplication) toModel() models.Application {
	app := models.Application{
		ID:            a.ID,
		CandidateID:   a.CandidateID,
		CandidateName: joinName(a.Candidate.FirstName, a.Candidate.LastName),
		StageID:       a.CurrentStage.ID,
		StageName:     a.CurrentStage.Name,
		AppliedAt:     a.AppliedAt,
	}
	for _, att := range a.Attachments {
		switch att.Type {
		case "resume":
			if app.ResumeURL == "" {
				app.ResumeURL = att.URL
			}
		case "cover_letter":
			if app.CoverLetterURL == "" {
				app.CoverLetterURL = att.URL
			}
		}
	}
	for _, ans := range a.Answers {
		app.Answers = append(app.Answers, models.Answer{Question: ans.Question, Answer: ans.Answer})
	}
	return app
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
