package scoring

import (
	"context"
	"strings"
)

// Predictor is an externally trained classifier. It returns the probability
// in [0,1] that a block is anomalous.
type Predictor interface {
	Predict(ctx context.Context, f Features) (float64, error)
}

// Features is the fixed input contract shared with the classifier artifact.
type Features struct {
	HighKeywordHits   int  `json:"high_keyword_hits"`
	MediumKeywordHits int  `json:"medium_keyword_hits"`
	DataNode          bool `json:"datanode"`
	FSNamesystem      bool `json:"fsnamesystem"`
	Receiving         bool `json:"receiving"`
	BlockRef          bool `json:"block_ref"`
	ContentLength     int  `json:"content_length"`
}

// FeatureNames lists Vector's columns in order.
var FeatureNames = []string{
	"high_keyword_hits",
	"medium_keyword_hits",
	"datanode",
	"fsnamesystem",
	"receiving",
	"block_ref",
	"content_length",
}

// ExtractFeatures derives the classifier inputs from a block's text.
func ExtractFeatures(component, content string) Features {
	comp := strings.ToLower(component)
	lc := strings.ToLower(content)
	return Features{
		HighKeywordHits:   countHits(lc, highKeywords),
		MediumKeywordHits: countHits(lc, mediumKeywords),
		DataNode:          strings.Contains(comp, "datanode"),
		FSNamesystem:      strings.Contains(comp, "fsnamesystem"),
		Receiving:         strings.Contains(lc, "receiving"),
		BlockRef:          strings.Contains(content, "blk_"),
		ContentLength:     len(content),
	}
}

// Vector flattens the features in FeatureNames order.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.HighKeywordHits),
		float64(f.MediumKeywordHits),
		boolf(f.DataNode),
		boolf(f.FSNamesystem),
		boolf(f.Receiving),
		boolf(f.BlockRef),
		float64(f.ContentLength),
	}
}

func countHits(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
