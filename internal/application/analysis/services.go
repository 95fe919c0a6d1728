package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/hdfs-analysis-sim/internal/application"
	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/metrics"
)

const (
	timestampLayout = "20060102_150405"
	artifactPrefix  = "results/"
	repoTimeout     = 5 * time.Second
)

// Config holds the batch processing knobs.
type Config struct {
	BlockDelay         time.Duration
	MaxDelayedBlocks   int // 0 = delay after every block
	WriteCSV           bool
	PerBlockCallbacks  bool
	DefaultCallbackURL string
}

// Deps are the ports the service drives. Artifacts and Publisher are optional.
type Deps struct {
	Repo      domain.JobRepository
	Notifier  domain.Notifier
	Results   domain.ResultStore
	Artifacts domain.ArtifactStore
	Publisher domain.Publisher
	Engine    *scoring.Engine
	Rand      scoring.Rand
	Clock     application.Clock
	Log       *zap.Logger
	// NewSuffix disambiguates jobs started for the same upload in the same second.
	NewSuffix func() string
}

// Service accepts analyze requests and runs one background worker per job.
// Service is safe for concurrent use.
type Service struct {
	Deps
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg Config, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = application.SystemClock{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Rand == nil {
		deps.Rand = scoring.NewLockedRand(0)
	}
	if deps.Engine == nil {
		deps.Engine = scoring.NewEngine(deps.Rand)
	}
	if deps.NewSuffix == nil {
		deps.NewSuffix = shortID
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{Deps: deps, cfg: cfg, ctx: ctx, cancel: cancel}
}

// AnalyzeCommand is an inbound batch request. Filename and TotalEntries are
// informational only.
type AnalyzeCommand struct {
	UploadID     domain.UploadID
	Filename     string
	TotalEntries int
	BlockIDs     []string
	CallbackURL  string
}

// CallbackURL resolves the request's callback target, falling back to the default.
func (s *Service) CallbackURL(cmd AnalyzeCommand) string {
	if cmd.CallbackURL != "" {
		return cmd.CallbackURL
	}
	return s.cfg.DefaultCallbackURL
}

// Start validates the command, launches the batch worker and returns at once.
func (s *Service) Start(ctx context.Context, cmd AnalyzeCommand) (domain.JobDescriptor, error) {
	callback := s.CallbackURL(cmd)
	if cmd.UploadID == "" || callback == "" || len(cmd.BlockIDs) == 0 {
		return domain.JobDescriptor{}, domain.ErrMissingFields
	}

	now := s.Clock.Now()
	stem := fmt.Sprintf("%s_%s_%s", SafeName(string(cmd.UploadID)), now.Format(timestampLayout), s.NewSuffix())
	jobID := domain.JobID("job_" + stem)

	var filename string
	if s.cfg.WriteCSV {
		filename = "analysis_" + stem + ".csv"
	}

	blocks := Synthesize(s.Rand, cmd.BlockIDs)

	job := &domain.Job{
		ID:               jobID,
		UploadID:         cmd.UploadID,
		Status:           domain.StatusPending,
		TotalBlocks:      len(blocks),
		AnalysisFilename: filename,
		CallbackURL:      callback,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Save(ctx, job); err != nil {
		s.Log.Warn("job tracking unavailable", zap.String("job_id", string(jobID)), zap.Error(err))
	}

	s.Log.Info("analysis job started",
		zap.String("job_id", string(jobID)),
		zap.String("upload_id", string(cmd.UploadID)),
		zap.String("filename", cmd.Filename),
		zap.Int("total_entries", cmd.TotalEntries),
		zap.Int("blocks", len(blocks)),
		zap.String("callback_url", callback),
	)
	metrics.JobsTotal.WithLabelValues("started").Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Process(s.ctx, job, blocks)
	}()

	return domain.JobDescriptor{
		JobID:                   jobID,
		Status:                  "processing",
		Message:                 fmt.Sprintf("Analysis started for %d blocks", len(blocks)),
		EstimatedCompletionTime: float64(len(blocks)) * s.cfg.BlockDelay.Seconds(),
		AnalysisFilename:        strPtr(filename),
	}, nil
}

// Process runs one batch to completion. Failures are logged, never returned.
// When ctx is cancelled the batch stops at the next block boundary and no
// completion callback is sent.
func (s *Service) Process(ctx context.Context, job *domain.Job, blocks []domain.BlockRecord) {
	log := s.Log.With(zap.String("job_id", string(job.ID)), zap.String("upload_id", string(job.UploadID)))
	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	s.progress(job.ID, domain.StatusRunning, 0)

	filename := job.AnalysisFilename
	var (
		w    domain.ResultWriter
		path string
	)
	if filename != "" {
		var err error
		w, path, err = s.Results.Create(filename)
		if err != nil {
			log.Error("cannot create results file, continuing in memory", zap.String("filename", filename), zap.Error(err))
			filename, path, w = "", "", nil
		}
	}
	closeWriter := func() {
		if w == nil {
			return
		}
		if err := w.Close(); err != nil {
			log.Error("closing results file", zap.String("path", path), zap.Error(err))
		}
		w = nil
	}

	results := make([]domain.AnalysisResult, 0, len(blocks))
	for i, b := range blocks {
		if ctx.Err() != nil {
			s.abandon(log, job, i, closeWriter)
			return
		}

		res := s.Engine.Score(ctx, b.BlockID, b.Component, b.Content)
		if res.PredictErr != nil {
			log.Warn("classifier failed, heuristic used", zap.String("block_id", b.BlockID), zap.Error(res.PredictErr))
		}
		metrics.BlocksScoredTotal.WithLabelValues(string(res.Category), string(res.Source)).Inc()

		r := domain.AnalysisResult{BlockID: b.BlockID, AnomalyScore: res.Score, Reason: res.Reason}
		results = append(results, r)

		if w != nil {
			if err := w.Write(r); err != nil {
				log.Error("writing result row", zap.String("block_id", b.BlockID), zap.Error(err))
			}
		}

		if s.cfg.PerBlockCallbacks {
			err := s.Notifier.NotifyBlock(ctx, job.CallbackURL, domain.BlockCallback{
				UploadID:     job.UploadID,
				BlockID:      r.BlockID,
				AnomalyScore: r.AnomalyScore,
				Reason:       r.Reason,
			})
			if err != nil {
				metrics.CallbacksTotal.WithLabelValues("block", "error").Inc()
				log.Warn("block callback failed", zap.String("block_id", r.BlockID), zap.Error(err))
			} else {
				metrics.CallbacksTotal.WithLabelValues("block", "ok").Inc()
				log.Debug("block callback sent", zap.String("block_id", r.BlockID), zap.Float64("score", r.AnomalyScore))
			}
		}

		s.progress(job.ID, domain.StatusRunning, i+1)

		if s.cfg.MaxDelayedBlocks <= 0 || i < s.cfg.MaxDelayedBlocks {
			if !sleep(ctx, s.cfg.BlockDelay) {
				s.abandon(log, job, i+1, closeWriter)
				return
			}
		}
	}
	closeWriter()

	// Shutdown must not cut off a finished batch's single delivery attempt.
	deliverCtx := context.WithoutCancel(ctx)

	if s.Artifacts != nil && path != "" {
		if url, err := s.Artifacts.Upload(deliverCtx, path, artifactPrefix+filename); err != nil {
			log.Warn("artifact upload failed", zap.String("path", path), zap.Error(err))
		} else {
			log.Info("artifact uploaded", zap.String("url", url))
		}
	}

	s.progress(job.ID, domain.StatusComplete, len(results))
	metrics.JobsTotal.WithLabelValues("complete").Inc()

	payload := domain.CompletionPayload{
		UploadID:             job.UploadID,
		AnalysisComplete:     true,
		AnalysisFilename:     strPtr(filename),
		AnalysisFilepath:     strPtr(path),
		TotalBlocksProcessed: len(results),
		Results:              results,
	}
	if err := s.Notifier.NotifyComplete(deliverCtx, job.CallbackURL+"-complete", payload); err != nil {
		metrics.CallbacksTotal.WithLabelValues("complete", "error").Inc()
		log.Error("completion callback failed", zap.Error(err))
	} else {
		metrics.CallbacksTotal.WithLabelValues("complete", "ok").Inc()
		log.Info("completion callback sent", zap.Int("blocks", len(results)))
	}

	if s.Publisher != nil {
		notice := domain.CompletionNotice{
			UploadID:             job.UploadID,
			JobID:                job.ID,
			TotalBlocksProcessed: len(results),
			AnalysisFilename:     strPtr(filename),
			CompletedAt:          s.Clock.Now(),
		}
		if err := s.Publisher.PublishComplete(deliverCtx, notice); err != nil {
			metrics.CallbacksTotal.WithLabelValues("publish", "error").Inc()
			log.Warn("completion publish failed", zap.Error(err))
		} else {
			metrics.CallbacksTotal.WithLabelValues("publish", "ok").Inc()
		}
	}

	log.Info("analysis complete", zap.String("filename", filename))
}

func (s *Service) abandon(log *zap.Logger, job *domain.Job, processed int, closeWriter func()) {
	closeWriter()
	s.progress(job.ID, domain.StatusCancelled, processed)
	metrics.JobsTotal.WithLabelValues("cancelled").Inc()
	log.Warn("analysis cancelled", zap.Int("processed", processed), zap.Int("total", job.TotalBlocks))
}

func (s *Service) progress(id domain.JobID, st domain.Status, processed int) {
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()
	if err := s.Repo.UpdateProgress(ctx, id, st, processed); err != nil {
		s.Log.Warn("job progress not recorded", zap.String("job_id", string(id)), zap.String("status", string(st)), zap.Error(err))
	}
}

// Status returns the tracked job, or domain.ErrJobNotFound.
func (s *Service) Status(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return s.Repo.Get(ctx, id)
}

// OpenResult opens a CSV artifact from the results dir, then from object storage.
func (s *Service) OpenResult(ctx context.Context, filename string) (io.ReadCloser, error) {
	rc, err := s.Results.Open(ctx, filename)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, domain.ErrResultNotFound) || s.Artifacts == nil {
		return nil, err
	}
	rc, aerr := s.Artifacts.Open(ctx, artifactPrefix+filename)
	if aerr != nil {
		s.Log.Debug("artifact lookup failed", zap.String("filename", filename), zap.Error(aerr))
		return nil, domain.ErrResultNotFound
	}
	return rc, nil
}

// ResultsDir is reported by the health endpoint.
func (s *Service) ResultsDir() string { return s.Results.Dir() }

// Shutdown cancels running batches and waits for their workers to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started worker has returned.
func (s *Service) Wait() { s.wg.Wait() }

// sleep waits for d or until ctx is done; it reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func shortID() string { return uuid.NewString()[:8] }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
