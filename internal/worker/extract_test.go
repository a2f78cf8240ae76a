package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/classifier"
	collyfetcher "github.com/CarlaKobielski/projeto-antipirataria/internal/fetcher/colly"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/fingerprint"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
	mempub "github.com/CarlaKobielski/projeto-antipirataria/internal/publisher/memory"
)

const pirateHTML = `<html><head><title>Título A - download grátis</title><script>var x=1;</script></head>
<body><h1>Título A</h1><p>Baixe agora o livro completo. ISBN 9781234. Todos os capítulos disponíveis para leitura online.</p></body></html>`

type stubClassifier struct {
	result classifier.Result
	err    error
}

func (s stubClassifier) Classify(context.Context, string, string, string, string) (classifier.Result, error) {
	return s.result, s.err
}

func seedCrawlResult(t *testing.T, f *fixture, html string, work piracy.Work) piracy.CrawlResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.SaveWork(ctx, work))
	require.NoError(t, f.store.CreateTask(ctx, piracy.MonitoringTask{ID: "job-1", WorkID: work.ID, TenantID: "t1", Status: piracy.JobStatusActive}))
	ref, err := f.blobs.PutObject(ctx, "evidence/t1/job-1/1-abcd", "text/html", []byte(html), nil)
	require.NoError(t, err)
	result := piracy.CrawlResult{
		ID: "cr-1", JobID: "job-1", URL: "https://libgen.example/download/titulo-a.pdf", Domain: "libgen.example",
		StatusCode: 200, RawContentRef: ref, CrawledAt: testNow,
	}
	require.NoError(t, f.store.CreateCrawlResult(ctx, result))
	return result
}

func extractJob(t *testing.T, id string) piracy.Job {
	t.Helper()
	payload, err := json.Marshal(piracy.ExtractionMessage{CrawlResultID: id})
	require.NoError(t, err)
	return piracy.Job{ID: "q-2", Topic: piracy.TopicExtract, Payload: payload, Attempt: 1}
}

func newExtract(f *fixture, c Classifier, pub piracy.Publisher) *Extract {
	return NewExtract(ExtractDeps{
		Results: f.store, Tasks: f.store, Works: f.store, Detections: f.store,
		Blobs: f.blobs, Classifier: c, Publisher: pub, Clock: f.clock, IDs: f.ids,
		MaxTextLength: 50000,
	}, zap.NewNop())
}

func TestExtractCreatesDetection(t *testing.T) {
	t.Parallel()

	f := newFixture()
	work := piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A", ISBN: "978-1-234"}
	seedCrawlResult(t, f, pirateHTML, work)
	pub := mempub.New()
	e := newExtract(f, classifier.New(f.store), pub)

	require.NoError(t, e.Handle(context.Background(), extractJob(t, "cr-1")))

	events := pub.ByTopic(EventDetectionCreated)
	require.Len(t, events, 1)
	event := events[0].Payload.(DetectionEvent)
	require.Equal(t, "t1", event.TenantID)
	require.Equal(t, piracy.ConfidenceHigh, event.Confidence)
	require.Nil(t, event.FingerprintMatch)

	detection, err := f.store.GetDetection(context.Background(), event.DetectionID)
	require.NoError(t, err)
	require.Equal(t, piracy.DetectionStatusNew, detection.Status)
	require.GreaterOrEqual(t, detection.Score, 0.7)
	require.NotEmpty(t, detection.Reasons)

	evidence, err := f.store.GetEvidence(context.Background(), detection.EvidenceID)
	require.NoError(t, err)
	require.Equal(t, "text/html", evidence.ContentType)
	require.Len(t, evidence.Simhash, 16)
	require.Equal(t, "libgen.example", evidence.Metadata["domain"])

	result, err := f.store.GetCrawlResult(context.Background(), "cr-1")
	require.NoError(t, err)
	require.NotNil(t, result.ProcessedAt)

	// Redelivery after completion is a no-op.
	require.NoError(t, e.Handle(context.Background(), extractJob(t, "cr-1")))
	require.Len(t, pub.Events(), 1)
}

func TestExtractComparesReferenceFingerprint(t *testing.T) {
	t.Parallel()

	f := newFixture()
	work := piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A"}
	seedCrawlResult(t, f, pirateHTML, work)

	content, err := collyfetcher.Extract([]byte(pirateHTML), nil, 50000)
	require.NoError(t, err)
	work.ReferenceSimhash = fingerprint.Generate(content.Text).Simhash
	require.NoError(t, f.store.SaveWork(context.Background(), work))

	e := newExtract(f, stubClassifier{result: classifier.Result{Score: 0.5, Confidence: piracy.ConfidenceMedium}}, nil)
	require.NoError(t, e.Handle(context.Background(), extractJob(t, "cr-1")))

	d, err := f.store.GetDetection(context.Background(), "id-2")
	require.NoError(t, err)
	require.NotNil(t, d.FingerprintMatch)
	require.InDelta(t, 1.0, *d.FingerprintMatch, 0.0001)
}

func TestExtractBelowThresholdOnlyMarksProcessed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seedCrawlResult(t, f, "<html><body>nothing here</body></html>", piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A"})
	pub := mempub.New()
	e := newExtract(f, stubClassifier{result: classifier.Result{Score: 0.29, Confidence: piracy.ConfidenceLow}}, pub)

	require.NoError(t, e.Handle(context.Background(), extractJob(t, "cr-1")))
	require.Empty(t, pub.Events())
	result, _ := f.store.GetCrawlResult(context.Background(), "cr-1")
	require.NotNil(t, result.ProcessedAt)
}

func TestExtractMarksProcessedWhenJobMissing(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seedCrawlResult(t, f, pirateHTML, piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A"})
	require.NoError(t, f.store.DeleteTask(context.Background(), "job-1"))
	e := newExtract(f, stubClassifier{err: errors.New("must not classify")}, nil)

	require.NoError(t, e.Handle(context.Background(), extractJob(t, "cr-1")))
	result, _ := f.store.GetCrawlResult(context.Background(), "cr-1")
	require.NotNil(t, result.ProcessedAt)
}

func TestExtractTreatsDuplicateDetectionAsDone(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seedCrawlResult(t, f, pirateHTML, piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A"})
	require.NoError(t, f.store.CreateDetection(context.Background(), piracy.Detection{ID: "existing", CrawlResultID: "cr-1", WorkID: "w1"}))
	pub := mempub.New()
	e := newExtract(f, stubClassifier{result: classifier.Result{Score: 0.9, Confidence: piracy.ConfidenceHigh}}, pub)

	require.NoError(t, e.Handle(context.Background(), extractJob(t, "cr-1")))
	require.Empty(t, pub.Events())
	result, _ := f.store.GetCrawlResult(context.Background(), "cr-1")
	require.NotNil(t, result.ProcessedAt)
	_, err := f.store.GetEvidence(context.Background(), "id-1")
	require.ErrorIs(t, err, piracy.ErrNotFound)
}

func TestExtractDropsMissingCrawlResult(t *testing.T) {
	t.Parallel()

	e := newExtract(newFixture(), stubClassifier{}, nil)
	require.NoError(t, e.Handle(context.Background(), extractJob(t, "missing")))
}

func TestExtractReturnsClassifierErrors(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seedCrawlResult(t, f, pirateHTML, piracy.Work{ID: "w1", TenantID: "t1", Title: "Título A"})
	e := newExtract(f, stubClassifier{err: errors.New("db down")}, nil)

	err := e.Handle(context.Background(), extractJob(t, "cr-1"))
	require.ErrorContains(t, err, "db down")
	result, _ := f.store.GetCrawlResult(context.Background(), "cr-1")
	require.Nil(t, result.ProcessedAt)
}
