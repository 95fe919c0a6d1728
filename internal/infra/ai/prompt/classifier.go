package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
)

const systemPrompt = `You are an HDFS block anomaly classifier.
You receive features extracted from one HDFS log line.
Answer with a single JSON object: {"probability": <number between 0 and 1>}
where probability is the likelihood that the block is anomalous.
Keyword hits for failure words (failed, error, corruption, suspicious) weigh heavily.
Warning words (warn, unusual, multiple, delayed) weigh moderately.
Do not add any other keys or text.`

// GetSystemPrompt returns the classifier instructions
func GetSystemPrompt() string {
	return systemPrompt
}

// GetUserPrompt renders the feature set for one block
func GetUserPrompt(f scoring.Features) string {
	b, _ := json.Marshal(f)
	return fmt.Sprintf("Block features:\n%s", b)
}
