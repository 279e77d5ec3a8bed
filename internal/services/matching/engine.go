package matching

import (
	"sort"
	"time"

	"statement-reconciliation-backend/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultSuggestionThreshold is the score a candidate must exceed to be
// flagged as a suggestion.
const DefaultSuggestionThreshold = 40

var nearValue = decimal.NewFromInt(50)

// Breakdown explains how a transaction's score was reached.
type Breakdown struct {
	TypeMatch  bool            `json:"type_match"`
	DateDiff   int             `json:"date_diff_days"`
	ValueDiff  decimal.Decimal `json:"value_diff"`
	DateScore  int             `json:"date_score"`
	ValueScore int             `json:"value_score"`
	Total      int             `json:"total"`
}

// Score rates how likely tx is the ledger side of item, from 0 to 100.
func Score(item models.StatementItem, tx models.LedgerTransaction) Breakdown {
	b := Breakdown{
		TypeMatch: directionsMatch(item.Direction, tx.Direction),
		DateDiff:  daysBetween(item.Date, tx.Date),
		ValueDiff: item.Amount.Sub(tx.Amount).Abs(),
	}
	if !b.TypeMatch {
		return b
	}

	switch {
	case b.DateDiff <= 3:
		b.DateScore = 50
	case b.DateDiff <= 30:
		b.DateScore = 25
	}

	switch {
	case b.ValueDiff.IsZero():
		b.ValueScore = 50
	case b.ValueDiff.LessThan(nearValue):
		b.ValueScore = 20
	}

	b.Total = b.DateScore + b.ValueScore
	return b
}

// Candidate is a transaction from the unreconciled pool, scored against the
// selected statement item when exactly one is selected.
type Candidate struct {
	models.LedgerTransaction
	Score        *int `json:"score,omitempty"`
	IsSuggestion bool `json:"is_suggestion"`
}

type Ranker struct {
	Threshold int
}

func NewRanker(threshold int) Ranker {
	if threshold <= 0 {
		threshold = DefaultSuggestionThreshold
	}
	return Ranker{Threshold: threshold}
}

// Rank annotates the pool. With exactly one selected statement item the
// candidates are scored and sorted best first, ties keeping pool order;
// otherwise the pool is returned unscored in its original order.
func (r Ranker) Rank(selected []models.StatementItem, pool []models.LedgerTransaction) []Candidate {
	out := make([]Candidate, len(pool))
	for i, tx := range pool {
		out[i] = Candidate{LedgerTransaction: tx}
	}
	if len(selected) != 1 {
		return out
	}

	item := selected[0]
	for i := range out {
		score := Score(item, out[i].LedgerTransaction).Total
		out[i].Score = &score
		out[i].IsSuggestion = score > r.Threshold
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Score > *out[j].Score
	})
	return out
}

func directionsMatch(s models.StatementDirection, t models.TransactionDirection) bool {
	return (s == models.DirectionCredit && t == models.DirectionInflow) ||
		(s == models.DirectionDebit && t == models.DirectionOutflow)
}

// daysBetween counts calendar days, ignoring the time of day.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
