// Package index maintains one flat-file vector index per job: upsert a
// candidate record, search by cosine similarity, persist and reload from disk.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/screenpilot/screenpilot/internal/logger"
	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/providers/embeddings"
	"github.com/screenpilot/screenpilot/internal/storage"
	"github.com/screenpilot/screenpilot/internal/utils"
)

const (
	// minIndexText guards against indexing applications whose resume never
	// produced usable text.
	minIndexText = 50
	// maxEmbedText keeps the blob inside the embedding model's token limit.
	maxEmbedText = 8000
	previewLen   = 200
)

type Index struct {
	store storage.Store
	emb   embeddings.Embedder
	log   *logrus.Entry

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(store storage.Store, emb embeddings.Embedder, l *logrus.Logger) *Index {
	return &Index{
		store: store,
		emb:   emb,
		log:   logger.For(l, "index"),
		locks: make(map[int64]*sync.Mutex),
	}
}

// jobLock serializes writers and readers per job within this process.
// Concurrent rebuilds of the same job from separate processes still race at
// the file level (last writer wins).
func (ix *Index) jobLock(jobID int64) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		ix.locks[jobID] = l
	}
	return l
}

func fileName(jobID int64) string {
	return fmt.Sprintf("index-%d.json", jobID)
}

// Ready reports whether the embedding backend is usable.
func (ix *Index) Ready() bool {
	return ix.emb.Ready()
}

// load returns the job's index, treating a corrupt or unreadable file as no
// index at all; the caller can always rebuild.
func (ix *Index) load(jobID int64) *models.JobIndex {
	var idx models.JobIndex
	exists, err := ix.store.Load(fileName(jobID), &idx)
	if !exists {
		return nil
	}
	if err != nil {
		ix.log.WithError(err).WithField("job_id", jobID).Warn("index file unreadable, treating as absent")
		return nil
	}
	return &idx
}

// IndexCandidate embeds one candidate and upserts the record into the job's
// index, keyed by application ID (replace if present, append otherwise).
func (ix *Index) IndexCandidate(ctx context.Context, jobID int64, jobTitle string, appID int64, name, resumeText string, answers []models.Answer) error {
	const op = "Index.IndexCandidate"

	text := buildIndexText(name, resumeText, answers)
	if len(text) < minIndexText {
		ix.log.WithFields(logrus.Fields{"job_id": jobID, "application_id": appID, "chars": len(text)}).
			Info("skipping index, not enough text")
		return nil
	}
	if len(text) > maxEmbedText {
		text = text[:maxEmbedText]
	}

	vectors, err := ix.emb.Embed(ctx, []string{text})
	if err != nil {
		return err
	}
	if len(vectors) != 1 {
		return utils.E(utils.CodeUpstream, op, "embedding backend returned no vector", nil)
	}

	rec := models.EmbeddingRecord{
		ApplicationID: appID,
		CandidateName: name,
		Preview:       preview(text),
		Vector:        vectors[0],
		IndexedAt:     time.Now().UTC(),
	}

	lock := ix.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	idx := ix.load(jobID)
	if idx == nil {
		idx = &models.JobIndex{JobID: jobID}
	}
	idx.JobTitle = jobTitle
	idx.IndexedAt = rec.IndexedAt

	replaced := false
	for i := range idx.Records {
		if idx.Records[i].ApplicationID == appID {
			idx.Records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Records = append(idx.Records, rec)
	}

	if err := ix.store.Save(fileName(jobID), idx); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist index", err)
	}
	return nil
}

// Search embeds the query and scores it against every stored vector,
// returning the top results by descending similarity.
func (ix *Index) Search(ctx context.Context, jobID int64, query string, limit int) ([]models.SearchHit, error) {
	const op = "Index.Search"

	if strings.TrimSpace(query) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	vectors, err := ix.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, utils.E(utils.CodeUpstream, op, "embedding backend returned no vector", nil)
	}
	qv := vectors[0]

	lock := ix.jobLock(jobID)
	lock.Lock()
	idx := ix.load(jobID)
	lock.Unlock()

	if idx == nil {
		return []models.SearchHit{}, nil
	}

	hits := make([]models.SearchHit, 0, len(idx.Records))
	for _, rec := range idx.Records {
		hits = append(hits, models.SearchHit{
			ApplicationID: rec.ApplicationID,
			CandidateName: rec.CandidateName,
			Preview:       rec.Preview,
			Score:         Cosine(qv, rec.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Status reports whether a job has an index, its size and freshness.
func (ix *Index) Status(jobID int64) models.IndexStatus {
	idx := ix.load(jobID)
	if idx == nil {
		return models.IndexStatus{}
	}
	return models.IndexStatus{Exists: true, Records: len(idx.Records), IndexedAt: idx.IndexedAt}
}

// Clear deletes the job's index file; the next IndexCandidate starts fresh.
func (ix *Index) Clear(jobID int64) error {
	lock := ix.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()
	return ix.store.Delete(fileName(jobID))
}

// Cosine is dot-product over the product of magnitudes. Mismatched-length
// vectors score 0 by definition; so do zero-magnitude vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func buildIndexText(name, resumeText string, answers []models.Answer) string {
	var sb strings.Builder
	sb.WriteString(name)
	if resumeText != "" {
		sb.WriteString("\n\n")
		sb.WriteString(resumeText)
	}
	for _, a := range answers {
		if strings.TrimSpace(a.Answer) == "" {
			continue
		}
		sb.WriteString("\n\nQ: ")
		sb.WriteString(a.Question)
		sb.WriteString("\nA: ")
		sb.WriteString(a.Answer)
	}
	return strings.TrimSpace(sb.String())
}

func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen]
}
