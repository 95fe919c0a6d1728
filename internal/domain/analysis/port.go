package analysis

import (
	"context"
	"io"
)

// JobRepository port (job status persistence)
type JobRepository interface {
	Save(ctx context.Context, j *Job) error
	UpdateProgress(ctx context.Context, id JobID, status Status, processed int) error
	Get(ctx context.Context, id JobID) (*Job, error)
}

// Notifier delivers callbacks to the caller. One attempt, no retry.
type Notifier interface {
	NotifyBlock(ctx context.Context, url string, cb BlockCallback) error
	NotifyComplete(ctx context.Context, url string, p CompletionPayload) error
}

// ResultWriter receives one row per analysed block
type ResultWriter interface {
	Write(r AnalysisResult) error
	Close() error
}

// ResultStore owns the CSV artifacts
type ResultStore interface {
	Create(filename string) (ResultWriter, string, error)
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
	Dir() string
}

// ArtifactStore mirrors finished artifacts to object storage
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Publisher fans completion notices out to other subscribers
type Publisher interface {
	PublishComplete(ctx context.Context, n CompletionNotice) error
}
