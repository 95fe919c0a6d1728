package scoring

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays fixed draws so scores can be pinned exactly.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRand) Intn(n int) int {
	v := s.ints[0] % n
	s.ints = s.ints[1:]
	return v
}

type fakePredictor struct {
	p   float64
	err error
}

func (f fakePredictor) Predict(context.Context, Features) (float64, error) { return f.p, f.err }

func TestScore_PinnedDraws(t *testing.T) {
	tests := []struct {
		name       string
		component  string
		content    string
		floats     []float64
		ints       []int
		wantScore  float64
		wantCat    Category
		wantReason string
	}{
		{
			name:       "failed block is high and needs attention",
			component:  "dfs.BlockManager",
			content:    "Failed to process block blk_1 - timeout",
			floats:     []float64{0.5, 0.5},
			ints:       []int{2},
			wantScore:  85,
			wantCat:    CategoryHigh,
			wantReason: "Failed block allocation - potential storage issue - Block blk_1 requires immediate attention",
		},
		{
			name:       "warning at exactly 50 gets no suffix",
			component:  "dfs.BlockManager",
			content:    "Warning: Unusual pattern detected for block blk_2",
			floats:     []float64{0, 1},
			ints:       []int{0},
			wantScore:  50,
			wantCat:    CategoryMedium,
			wantReason: "Higher than normal replication requests",
		},
		{
			name:       "warning above 50 shows concerning patterns",
			component:  "dfs.BlockManager",
			content:    "Warning: Unusual pattern detected for block blk_2",
			floats:     []float64{0.5, 0.5},
			ints:       []int{0},
			wantScore:  60,
			wantCat:    CategoryMedium,
			wantReason: "Higher than normal replication requests - Block blk_2 shows concerning patterns",
		},
		{
			name:       "datanode receiving below split is low",
			component:  "dfs.DataNode$DataXceiver",
			content:    "Receiving block blk_3 src: /10.250.1.2",
			floats:     []float64{0.5, 1},
			ints:       []int{1},
			wantScore:  30,
			wantCat:    CategoryLow,
			wantReason: "Block access from unusual IP range",
		},
		{
			name:       "fsnamesystem at the top of its range is medium",
			component:  "dfs.FSNamesystem",
			content:    "BLOCK* NameSystem.allocateBlock: /mnt/hadoop/data/file_1.dat. blk_4",
			floats:     []float64{1, 0},
			ints:       []int{0},
			wantScore:  40,
			wantCat:    CategoryMedium,
			wantReason: "Higher than normal replication requests",
		},
		{
			name:       "default rule clamps at zero",
			component:  "dfs.BlockManager",
			content:    "Block operation for x",
			floats:     []float64{0, 0},
			ints:       []int{7},
			wantScore:  0,
			wantCat:    CategoryLow,
			wantReason: "Minor metadata validation warnings",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(&scriptedRand{floats: tc.floats, ints: tc.ints})
			res := e.Score(context.Background(), blockIDOf(tc.content), tc.component, tc.content)

			assert.InDelta(t, tc.wantScore, res.Score, 0.001)
			assert.Equal(t, tc.wantCat, res.Category)
			assert.Equal(t, tc.wantReason, res.Reason)
			assert.Equal(t, SourceHeuristic, res.Source)
		})
	}
}

func TestScore_RangesHold(t *testing.T) {
	e := NewEngine(NewLockedRand(42))
	cases := []struct {
		component, content string
		min, max           float64
	}{
		{"dfs.BlockManager", "checksum ERROR on blk_9", 70, 100},
		{"dfs.BlockManager", "SUSPICIOUS read", 70, 100},
		{"dfs.BlockManager", "replication delayed", 40, 80},
		{"dfs.DataNode$DataXceiver", "Receiving block blk_1", 5, 45},
		{"dfs.FSNamesystem", "allocateBlock blk_2", 10, 50},
		{"dfs.BlockManager", "", 0, 35},
	}
	for _, c := range cases {
		for i := 0; i < 500; i++ {
			res := e.Score(context.Background(), "blk_x", c.component, c.content)
			require.GreaterOrEqual(t, res.Score, c.min, c.content)
			require.LessOrEqual(t, res.Score, c.max, c.content)
			require.Equal(t, res.Score, math.Round(res.Score*100)/100, "score must have two decimals")
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	tests := []struct {
		component, content string
		want               string
	}{
		{"dfs.DataNode$DataXceiver", "Failed to receive", "high-risk-keywords"},
		{"dfs.DataNode$DataXceiver", "Receiving block with multiple sources", "medium-risk-keywords"},
		{"dfs.DataNode$DataXceiver", "RECEIVING block blk_1", "datanode-receiving"},
		{"dfs.DataNode$DataXceiver", "Served block blk_1", "default"},
		{"dfs.FSNamesystem", "BLOCK* NameSystem.allocateBlock", "fsnamesystem"},
		{"", "", "default"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.component, tc.content).Name, tc.content)
		assert.Equal(t, tc.want, Classify(tc.component, tc.content).Name, "second call must agree")
	}
}

func TestRule_CategoryFor(t *testing.T) {
	dn := Classify("datanode", "receiving")
	assert.Equal(t, CategoryLow, dn.CategoryFor(29.99))
	assert.Equal(t, CategoryMedium, dn.CategoryFor(30))

	fs := Classify("fsnamesystem", "")
	assert.Equal(t, CategoryLow, fs.CategoryFor(34.99))
	assert.Equal(t, CategoryMedium, fs.CategoryFor(35))
}

func TestScore_Classifier(t *testing.T) {
	e := NewEngine(&scriptedRand{ints: []int{3}}).WithPredictor(fakePredictor{p: 0.1234})
	res := e.Score(context.Background(), "blk_5", "dfs.BlockManager", "Block operation for blk_5")

	assert.Equal(t, SourceClassifier, res.Source)
	assert.Equal(t, 12.34, res.Score)
	assert.Equal(t, CategoryNormal, res.Category)
	assert.Equal(t, Reasons[CategoryNormal][3], res.Reason)
}

func TestScore_ClassifierHighAddsSuffix(t *testing.T) {
	e := NewEngine(&scriptedRand{ints: []int{0}}).WithPredictor(fakePredictor{p: 0.91})
	res := e.Score(context.Background(), "blk_6", "dfs.BlockManager", "Block operation for blk_6")

	assert.Equal(t, CategoryHigh, res.Category)
	assert.True(t, strings.HasSuffix(res.Reason, "Block blk_6 requires immediate attention"))
}

func TestScore_ClassifierFallsBack(t *testing.T) {
	boom := errors.New("model unavailable")
	e := NewEngine(&scriptedRand{floats: []float64{0.5, 0.5}, ints: []int{0}}).
		WithPredictor(fakePredictor{err: boom})
	res := e.Score(context.Background(), "blk_7", "dfs.BlockManager", "corruption detected")

	assert.Equal(t, SourceHeuristic, res.Source)
	assert.ErrorIs(t, res.PredictErr, boom)
	assert.Equal(t, 85.0, res.Score)
}

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures("dfs.DataNode$DataXceiver", "Receiving block blk_1 - checksum error, delayed")
	assert.Equal(t, 1, f.HighKeywordHits)
	assert.Equal(t, 1, f.MediumKeywordHits)
	assert.True(t, f.DataNode)
	assert.False(t, f.FSNamesystem)
	assert.True(t, f.Receiving)
	assert.True(t, f.BlockRef)
	assert.Len(t, f.Vector(), len(FeatureNames))
}

func blockIDOf(content string) string {
	for _, w := range strings.Fields(content) {
		if strings.HasPrefix(w, "blk_") {
			return w
		}
	}
	return "blk_0"
}
