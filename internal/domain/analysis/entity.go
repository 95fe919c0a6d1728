package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JobID identifies one batch run
type JobID string

// Status of a batch job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// UploadID accepts both JSON strings and numbers; callers send database ids.
type UploadID string

func (u *UploadID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*u = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = UploadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("upload_id must be a string or number: %w", err)
	}
	// A numeric zero counts as missing.
	if f, err := n.Float64(); err == nil && f == 0 {
		*u = ""
		return nil
	}
	*u = UploadID(n.String())
	return nil
}

// BlockRecord is one synthetic log line for a block
type BlockRecord struct {
	BlockID   string `json:"block_id"`
	Component string `json:"component"`
	Content   string `json:"content"`
}

// AnalysisResult is produced one-to-one from a BlockRecord
type AnalysisResult struct {
	BlockID      string  `json:"block_id"`
	AnomalyScore float64 `json:"anomaly_score"`
	Reason       string  `json:"reason"`
}

// BlockCallback is posted to callback_url after each block in incremental mode
type BlockCallback struct {
	UploadID     UploadID `json:"upload_id"`
	BlockID      string   `json:"block_id"`
	AnomalyScore float64  `json:"anomaly_score"`
	Reason       string   `json:"reason"`
}

// CompletionPayload is posted once to callback_url + "-complete"
type CompletionPayload struct {
	UploadID             UploadID         `json:"upload_id"`
	AnalysisComplete     bool             `json:"analysis_complete"`
	AnalysisFilename     *string          `json:"analysis_filename"`
	AnalysisFilepath     *string          `json:"analysis_filepath"`
	TotalBlocksProcessed int              `json:"total_blocks_processed"`
	Results              []AnalysisResult `json:"results"`
}

// JobDescriptor is the immediate answer to an analyze request
type JobDescriptor struct {
	JobID                   JobID   `json:"job_id"`
	Status                  string  `json:"status"`
	Message                 string  `json:"message"`
	EstimatedCompletionTime float64 `json:"estimated_completion_time"`
	AnalysisFilename        *string `json:"analysis_filename"`
}

// Job is the tracked state of a batch
type Job struct {
	ID               JobID     `json:"job_id"`
	UploadID         UploadID  `json:"upload_id"`
	Status           Status    `json:"status"`
	TotalBlocks      int       `json:"total_blocks"`
	ProcessedBlocks  int       `json:"processed_blocks"`
	AnalysisFilename string    `json:"analysis_filename,omitempty"`
	CallbackURL      string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CompletionNotice is the summary published on the pub/sub channel
type CompletionNotice struct {
	UploadID             UploadID  `json:"upload_id"`
	JobID                JobID     `json:"job_id"`
	TotalBlocksProcessed int       `json:"total_blocks_processed"`
	AnalysisFilename     *string   `json:"analysis_filename"`
	CompletedAt          time.Time `json:"completed_at"`
}
