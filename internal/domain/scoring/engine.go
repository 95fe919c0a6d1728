package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
)

var (
	highKeywords   = []string{"failed", "error", "corruption", "suspicious"}
	mediumKeywords = []string{"warn", "unusual", "multiple", "delayed"}
)

// Rule is one branch of the heuristic policy. Scores are drawn from
// [Min, Max]; a draw below Split maps to Below, otherwise to Above.
type Rule struct {
	Name  string
	Min   float64
	Max   float64
	Split float64
	Below Category
	Above Category
	match func(component, content string) bool
}

// CategoryFor maps a base draw to the rule's category.
func (r Rule) CategoryFor(score float64) Category {
	if r.Split > 0 && score < r.Split {
		return r.Below
	}
	return r.Above
}

// rules are evaluated in order; the last one always matches.
var rules = []Rule{
	{
		Name: "high-risk-keywords", Min: 75, Max: 95, Below: CategoryHigh, Above: CategoryHigh,
		match: func(_, content string) bool { return containsAny(content, highKeywords) },
	},
	{
		Name: "medium-risk-keywords", Min: 45, Max: 75, Below: CategoryMedium, Above: CategoryMedium,
		match: func(_, content string) bool { return containsAny(content, mediumKeywords) },
	},
	{
		Name: "datanode-receiving", Min: 10, Max: 40, Split: 30, Below: CategoryLow, Above: CategoryMedium,
		match: func(component, content string) bool {
			return strings.Contains(component, "datanode") && strings.Contains(content, "receiving")
		},
	},
	{
		Name: "fsnamesystem", Min: 15, Max: 45, Split: 35, Below: CategoryLow, Above: CategoryMedium,
		match: func(component, _ string) bool { return strings.Contains(component, "fsnamesystem") },
	},
	{
		Name: "default", Min: 5, Max: 30, Below: CategoryLow, Above: CategoryLow,
		match: func(_, _ string) bool { return true },
	},
}

// Classify returns the heuristic rule that applies to a block. The choice
// depends only on the text, never on random draws.
func Classify(component, content string) Rule {
	comp := strings.ToLower(component)
	lc := strings.ToLower(content)
	for _, r := range rules {
		if r.match(comp, lc) {
			return r
		}
	}
	return rules[len(rules)-1]
}

// Source tells which path produced a result.
type Source string

const (
	SourceHeuristic  Source = "heuristic"
	SourceClassifier Source = "classifier"
)

// Result is the outcome of scoring one block.
type Result struct {
	Score    float64
	Reason   string
	Category Category
	Source   Source
	// PredictErr is set when the predictor failed and the heuristic was used instead.
	PredictErr error
}

// Engine scores blocks. It never fails: a broken predictor falls back to the
// heuristic policy.
type Engine struct {
	rnd       Rand
	predictor Predictor
}

// NewEngine builds a heuristic engine. Pass a scripted Rand in tests to pin outputs.
func NewEngine(rnd Rand) *Engine {
	if rnd == nil {
		rnd = NewLockedRand(0)
	}
	return &Engine{rnd: rnd}
}

// WithPredictor switches the engine to classifier scoring.
func (e *Engine) WithPredictor(p Predictor) *Engine {
	e.predictor = p
	return e
}

// Score maps (block id, component, content) to a score in [0,100] and a reason.
func (e *Engine) Score(ctx context.Context, blockID, component, content string) Result {
	if e.predictor == nil {
		return e.heuristic(blockID, component, content)
	}

	p, err := e.predictor.Predict(ctx, ExtractFeatures(component, content))
	if err != nil {
		res := e.heuristic(blockID, component, content)
		res.PredictErr = err
		return res
	}

	score := clamp(p*100, 0, 100)
	cat := categoryFromProbability(score)
	return Result{
		Score:    round2(score),
		Reason:   e.reason(cat, blockID, content, score),
		Category: cat,
		Source:   SourceClassifier,
	}
}

func (e *Engine) heuristic(blockID, component, content string) Result {
	rule := Classify(component, content)

	score := uniform(e.rnd, rule.Min, rule.Max)
	cat := rule.CategoryFor(score)

	score += uniform(e.rnd, -5, 5)
	score = clamp(score, 0, 100)

	return Result{
		Score:    round2(score),
		Reason:   e.reason(cat, blockID, content, score),
		Category: cat,
		Source:   SourceHeuristic,
	}
}

func (e *Engine) reason(cat Category, blockID, content string, score float64) string {
	list := Reasons[cat]
	reason := list[e.rnd.Intn(len(list))]

	if strings.Contains(content, "blk_") {
		switch {
		case score > 70:
			reason += fmt.Sprintf(suffixImmediate, blockID)
		case score > 50:
			reason += fmt.Sprintf(suffixConcerning, blockID)
		}
	}
	return reason
}

func categoryFromProbability(score float64) Category {
	switch {
	case score >= 70:
		return CategoryHigh
	case score >= 40:
		return CategoryMedium
	case score >= 15:
		return CategoryLow
	default:
		return CategoryNormal
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
