package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/classifier"
	collyfetcher "github.com/CarlaKobielski/projeto-antipirataria/internal/fetcher/colly"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/fingerprint"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// DetectionThreshold is the minimum score that creates a Detection.
const DetectionThreshold = 0.3

// EventDetectionCreated is published for every new detection.
const EventDetectionCreated = "detection.created"

const defaultEvidenceType = "text/html"

// Classifier scores a page against a work.
type Classifier interface {
	Classify(ctx context.Context, workID, pageURL, pageText, pageTitle string) (classifier.Result, error)
}

// DetectionEvent is the payload of EventDetectionCreated.
type DetectionEvent struct {
	DetectionID      string                 `json:"detectionId"`
	WorkID           string                 `json:"workId"`
	TenantID         string                 `json:"tenantId"`
	URL              string                 `json:"url"`
	Domain           string                 `json:"domain"`
	Score            float64                `json:"score"`
	Confidence       piracy.ConfidenceLevel `json:"confidence"`
	FingerprintMatch *float64               `json:"fingerprintMatch,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// Extract handles extraction stage jobs.
type Extract struct {
	results    piracy.CrawlResultStore
	tasks      piracy.TaskStore
	works      piracy.WorkStore
	detections piracy.DetectionStore
	blobs      piracy.BlobStore
	classifier Classifier
	publisher  piracy.Publisher
	clock      piracy.Clock
	ids        piracy.IDGenerator
	maxText    int
	logger     *zap.Logger
}

// ExtractDeps groups the collaborators of Extract. Publisher is optional.
type ExtractDeps struct {
	Results       piracy.CrawlResultStore
	Tasks         piracy.TaskStore
	Works         piracy.WorkStore
	Detections    piracy.DetectionStore
	Blobs         piracy.BlobStore
	Classifier    Classifier
	Publisher     piracy.Publisher
	Clock         piracy.Clock
	IDs           piracy.IDGenerator
	MaxTextLength int
}

// NewExtract constructs an extraction handler.
func NewExtract(deps ExtractDeps, logger *zap.Logger) *Extract {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extract{
		results:    deps.Results,
		tasks:      deps.Tasks,
		works:      deps.Works,
		detections: deps.Detections,
		blobs:      deps.Blobs,
		classifier: deps.Classifier,
		publisher:  deps.Publisher,
		clock:      deps.Clock,
		ids:        deps.IDs,
		maxText:    deps.MaxTextLength,
		logger:     logger.Named("extract"),
	}
}

// Handle implements piracy.Handler. Crawl results already marked processed
// are skipped, so redelivery never creates a second detection.
func (e *Extract) Handle(ctx context.Context, job piracy.Job) error {
	msg, err := piracy.Decode[piracy.ExtractionMessage](job)
	if err != nil {
		return err
	}
	logger := e.logger.With(zap.String("crawl_result_id", msg.CrawlResultID), zap.String("url", msg.URL))

	result, err := e.results.GetCrawlResult(ctx, msg.CrawlResultID)
	if errors.Is(err, piracy.ErrNotFound) {
		logger.Warn("crawl result not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load crawl result: %w", err)
	}
	if result.ProcessedAt != nil {
		logger.Debug("crawl result already processed")
		return nil
	}
	task, err := e.tasks.GetTask(ctx, result.JobID)
	if errors.Is(err, piracy.ErrNotFound) {
		logger.Warn("monitoring job not found", zap.String("job_id", result.JobID))
		return e.markProcessed(ctx, result.ID)
	}
	if err != nil {
		return fmt.Errorf("load monitoring job: %w", err)
	}

	content, err := e.content(ctx, result)
	if err != nil {
		return err
	}
	verdict, err := e.classifier.Classify(ctx, task.WorkID, result.URL, content.Text, content.Title)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	if verdict.Score >= DetectionThreshold {
		if err := e.detect(ctx, task, result, content, verdict, logger); err != nil {
			return err
		}
	} else {
		logger.Debug("below detection threshold", zap.Float64("score", verdict.Score))
	}

	return e.markProcessed(ctx, result.ID)
}

func (e *Extract) markProcessed(ctx context.Context, crawlResultID string) error {
	if err := e.results.MarkProcessed(ctx, crawlResultID, e.clock.Now()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (e *Extract) content(ctx context.Context, result piracy.CrawlResult) (collyfetcher.Content, error) {
	raw, err := e.blobs.GetObject(ctx, result.RawContentRef)
	if err != nil {
		return collyfetcher.Content{}, fmt.Errorf("load content: %w", err)
	}
	base, err := url.Parse(result.URL)
	if err != nil {
		return collyfetcher.Content{}, piracy.Permanent(fmt.Errorf("parse url %q: %w", result.URL, err))
	}
	content, err := collyfetcher.Extract(raw, base, e.maxText)
	if err != nil {
		return collyfetcher.Content{}, fmt.Errorf("extract content: %w", err)
	}
	return content, nil
}

func (e *Extract) detect(
	ctx context.Context,
	task piracy.MonitoringTask,
	result piracy.CrawlResult,
	content collyfetcher.Content,
	verdict classifier.Result,
	logger *zap.Logger,
) error {
	fp := fingerprint.Generate(content.Text)
	now := e.clock.Now()

	evidenceID, err := e.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	contentType := result.ContentType
	if contentType == "" {
		contentType = defaultEvidenceType
	}
	evidence := piracy.Evidence{
		ID:          evidenceID,
		StoragePath: result.RawContentRef,
		ContentType: contentType,
		SHA256:      fp.SHA256,
		Simhash:     fp.Simhash,
		Metadata: map[string]any{
			"url":       result.URL,
			"domain":    result.Domain,
			"crawledAt": result.CrawledAt,
		},
		CreatedAt: now,
	}

	detectionID, err := e.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	detection := piracy.Detection{
		ID:               detectionID,
		WorkID:           task.WorkID,
		CrawlResultID:    result.ID,
		URL:              result.URL,
		Domain:           result.Domain,
		Score:            verdict.Score,
		Confidence:       verdict.Confidence,
		Reasons:          verdict.Reasons,
		FingerprintMatch: e.referenceMatch(ctx, task.WorkID, fp.Simhash, logger),
		EvidenceID:       evidenceID,
		Status:           piracy.DetectionStatusNew,
		CreatedAt:        now,
	}
	err = e.detections.RecordDetection(ctx, evidence, detection)
	if errors.Is(err, piracy.ErrConflict) {
		logger.Info("detection already exists", zap.String("work_id", task.WorkID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("record detection: %w", err)
	}

	metrics.ObserveDetection(string(detection.Confidence))
	logger.Info("detection created",
		zap.String("detection_id", detectionID),
		zap.Float64("score", detection.Score),
		zap.String("confidence", string(detection.Confidence)),
	)
	e.publish(ctx, task, detection, logger)
	return nil
}

// referenceMatch compares against the work's registered simhash, if any.
func (e *Extract) referenceMatch(ctx context.Context, workID, simhash string, logger *zap.Logger) *float64 {
	work, err := e.works.GetWork(ctx, workID)
	if err != nil {
		logger.Debug("reference fingerprint unavailable", zap.Error(err))
		return nil
	}
	if work.ReferenceSimhash == "" {
		return nil
	}
	sim, err := fingerprint.SimilarityHex(work.ReferenceSimhash, simhash)
	if err != nil {
		logger.Warn("invalid reference simhash", zap.String("work_id", workID), zap.Error(err))
		return nil
	}
	return &sim
}

func (e *Extract) publish(ctx context.Context, task piracy.MonitoringTask, d piracy.Detection, logger *zap.Logger) {
	if e.publisher == nil {
		return
	}
	event := DetectionEvent{
		DetectionID:      d.ID,
		WorkID:           d.WorkID,
		TenantID:         task.TenantID,
		URL:              d.URL,
		Domain:           d.Domain,
		Score:            d.Score,
		Confidence:       d.Confidence,
		FingerprintMatch: d.FingerprintMatch,
		CreatedAt:        d.CreatedAt,
	}
	if _, err := e.publisher.Publish(ctx, EventDetectionCreated, event); err != nil {
		logger.Warn("publish detection event failed", zap.String("detection_id", d.ID), zap.Error(err))
	}
}
