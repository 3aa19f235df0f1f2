// Package qualification turns a validated bill extraction into a sales decision.
package qualification

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
)

const (
	// DefaultMinAmount is the smallest monthly bill (BRL) worth a solar proposal.
	DefaultMinAmount = 200
	// DefaultScoreThreshold is the score a lead needs to qualify.
	DefaultScoreThreshold = 65

	gatedScoreCap      = 10
	missingNamePenalty = 20
	noProviderPenalty  = 5
	confidenceBonusMax = 15
	minNameLength      = 10
)

type band struct {
	floor decimal.Decimal
	score int
}

// amountBands are ordered from highest floor to lowest.
var amountBands = []band{
	{floor: decimal.NewFromInt(1500), score: 85},
	{floor: decimal.NewFromInt(800), score: 80},
	{floor: decimal.NewFromInt(500), score: 70},
	{floor: decimal.NewFromInt(300), score: 60},
	{floor: decimal.NewFromInt(200), score: 50},
}

// Result is the qualification decision for one extraction.
type Result struct {
	Score       int      `json:"qualification_score"`
	IsQualified bool     `json:"is_qualified"`
	Reasons     []string `json:"reasons"`
}

// Scorer applies the monetary gate followed by band scoring.
type Scorer struct {
	minAmount      decimal.Decimal
	scoreThreshold int
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithMinAmount overrides the hard monetary gate.
func WithMinAmount(amount float64) Option {
	return func(s *Scorer) {
		if amount > 0 {
			s.minAmount = decimal.NewFromFloat(amount)
		}
	}
}

// WithScoreThreshold overrides the qualifying score.
func WithScoreThreshold(threshold int) Option {
	return func(s *Scorer) {
		if threshold > 0 && threshold <= 100 {
			s.scoreThreshold = threshold
		}
	}
}

// NewScorer builds a scorer with the default business constants.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		minAmount:      decimal.NewFromInt(DefaultMinAmount),
		scoreThreshold: DefaultScoreThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinAmount returns the configured gate.
func (s *Scorer) MinAmount() decimal.Decimal { return s.minAmount }

// ScoreThreshold returns the configured qualifying score.
func (s *Scorer) ScoreThreshold() int { return s.scoreThreshold }

var defaultScorer = NewScorer()

// Qualify scores with the default constants.
func Qualify(fields extraction.ExtractedFields, validation extraction.ValidationResult) Result {
	return defaultScorer.Qualify(fields, validation)
}

// Qualify decides whether the bill behind fields is worth pursuing. Amounts below
// the gate never qualify, whatever the rest of the extraction looks like.
func (s *Scorer) Qualify(fields extraction.ExtractedFields, validation extraction.ValidationResult) Result {
	res := Result{Reasons: []string{}}

	amount, ok := fields.TotalAmount()
	if !ok {
		res.Reasons = append(res.Reasons, "bill amount could not be read")
		return res
	}
	if amount.LessThan(s.minAmount) {
		res.Score = gatedScore(amount, s.minAmount)
		res.Reasons = append(res.Reasons, fmt.Sprintf("bill amount R$ %s is below the minimum of R$ %s", amount.StringFixed(2), s.minAmount.StringFixed(2)))
		return res
	}

	score := bandScore(amount)
	res.Reasons = append(res.Reasons, fmt.Sprintf("bill amount R$ %s scores %d", amount.StringFixed(2), score))

	if name, ok := fields.CustomerName(); !ok || utf8.RuneCountInString(name) < minNameLength {
		score -= missingNamePenalty
		res.Reasons = append(res.Reasons, fmt.Sprintf("customer name missing or incomplete (-%d)", missingNamePenalty))
	}
	if _, ok := fields.Provider(); !ok {
		score -= noProviderPenalty
		res.Reasons = append(res.Reasons, fmt.Sprintf("electricity provider not identified (-%d)", noProviderPenalty))
	}
	bonus := int(math.Round(confidenceBonusMax * validation.ConfidenceScore))
	if bonus > 0 {
		score += bonus
		res.Reasons = append(res.Reasons, fmt.Sprintf("extraction confidence %.2f (+%d)", validation.ConfidenceScore, bonus))
	}
	res.Score = clamp(score, 0, 100)

	switch {
	case len(validation.ValidationErrors) > 0:
		res.Reasons = append(res.Reasons, "extraction has validation errors")
	case res.Score >= s.scoreThreshold:
		res.IsQualified = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("score %d meets threshold %d", res.Score, s.scoreThreshold))
	default:
		res.Reasons = append(res.Reasons, fmt.Sprintf("score %d below threshold %d", res.Score, s.scoreThreshold))
	}
	return res
}

// gatedScore scales sub-threshold amounts into [0, cap].
func gatedScore(amount, minAmount decimal.Decimal) int {
	if !amount.GreaterThan(decimal.Zero) || !minAmount.GreaterThan(decimal.Zero) {
		return 0
	}
	ratio, _ := amount.Div(minAmount).Float64()
	return clamp(int(math.Round(ratio*gatedScoreCap)), 0, gatedScoreCap)
}

func bandScore(amount decimal.Decimal) int {
	for _, b := range amountBands {
		if amount.GreaterThanOrEqual(b.floor) {
			return b.score
		}
	}
	return amountBands[len(amountBands)-1].score
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
