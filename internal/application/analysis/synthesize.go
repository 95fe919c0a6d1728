package analysis

import (
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
)

// Components a synthetic block can originate from.
var Components = []string{"dfs.DataNode$DataXceiver", "dfs.FSNamesystem", "dfs.BlockManager"}

var errorDetails = []string{"checksum error", "timeout", "corruption detected"}

// Injected failure rates used to exercise the scoring branches.
const (
	errorChance   = 0.10
	warningChance = 0.05
)

// Synthesize builds one BlockRecord per id, in input order.
func Synthesize(r scoring.Rand, blockIDs []string) []domain.BlockRecord {
	out := make([]domain.BlockRecord, 0, len(blockIDs))
	for _, id := range blockIDs {
		component := Components[r.Intn(len(Components))]

		var content string
		switch {
		case strings.Contains(component, "DataNode"):
			content = fmt.Sprintf("Receiving block %s src: /10.250.%d.%d", id, 1+r.Intn(50), 1+r.Intn(255))
		case strings.Contains(component, "FSNamesystem"):
			content = fmt.Sprintf("BLOCK* NameSystem.allocateBlock: /mnt/hadoop/data/file_%d.dat. %s", 1+r.Intn(1000), id)
		default:
			content = fmt.Sprintf("Block operation for %s", id)
		}

		if r.Float64() < errorChance {
			content = fmt.Sprintf("Failed to process block %s - %s", id, errorDetails[r.Intn(len(errorDetails))])
		} else if r.Float64() < warningChance {
			content = fmt.Sprintf("Warning: Unusual pattern detected for block %s", id)
		}

		out = append(out, domain.BlockRecord{BlockID: id, Component: component, Content: content})
	}
	return out
}

// SafeName replaces anything outside [A-Za-z0-9_-] so ids can be used in file names.
func SafeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
