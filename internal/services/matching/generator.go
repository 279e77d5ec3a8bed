package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type statementLister interface {
	ListUnreconciled(ctx context.Context, f models.Filter) ([]models.StatementItem, error)
}

type transactionLister interface {
	ListEligible(ctx context.Context, f models.Filter) ([]models.LedgerTransaction, error)
}

type suggestionWriter interface {
	ReplacePending(ctx context.Context, f models.Filter, suggestions []models.MatchSuggestion) error
}

// Generator is the server-side scorer. It rebuilds the pending 1:1
// suggestions for a filter from the candidate heuristic.
type Generator struct {
	statements   statementLister
	transactions transactionLister
	suggestions  suggestionWriter
}

func NewGenerator(statements statementLister, transactions transactionLister, suggestions suggestionWriter) *Generator {
	return &Generator{statements: statements, transactions: transactions, suggestions: suggestions}
}

type pair struct {
	item      models.StatementItem
	tx        models.LedgerTransaction
	breakdown Breakdown
}

// Generate replaces the filter's pending suggestions and returns how many
// were created. minScore is on the suggestion scale, 0 to 1.
func (g *Generator) Generate(ctx context.Context, f models.Filter, minScore float64) (int, error) {
	items, err := g.statements.ListUnreconciled(ctx, f)
	if err != nil {
		return 0, err
	}
	txs, err := g.transactions.ListEligible(ctx, f)
	if err != nil {
		return 0, err
	}

	var pairs []pair
	for _, item := range items {
		for _, tx := range txs {
			b := Score(item, tx)
			if !b.TypeMatch || b.Total == 0 || normalize(b.Total) < minScore {
				continue
			}
			pairs = append(pairs, pair{item: item, tx: tx, breakdown: b})
		}
	}

	// best first; closer dates break ties so the pairing is deterministic
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].breakdown.Total != pairs[j].breakdown.Total {
			return pairs[i].breakdown.Total > pairs[j].breakdown.Total
		}
		return pairs[i].breakdown.DateDiff < pairs[j].breakdown.DateDiff
	})

	usedItems := make(map[uuid.UUID]bool)
	usedTxs := make(map[uuid.UUID]bool)
	var suggestions []models.MatchSuggestion
	for _, p := range pairs {
		if usedItems[p.item.ID] || usedTxs[p.tx.ID] {
			continue
		}
		usedItems[p.item.ID] = true
		usedTxs[p.tx.ID] = true

		features, err := json.Marshal(p.breakdown)
		if err != nil {
			return 0, fmt.Errorf("encoding features: %w", err)
		}
		suggestions = append(suggestions, models.MatchSuggestion{
			ID:               uuid.New(),
			TenantID:         f.TenantID,
			AccountID:        p.item.AccountID,
			MatchType:        models.MatchOneToOne,
			StatementItemIDs: datatypes.JSONSlice[uuid.UUID]{p.item.ID},
			TransactionIDs:   datatypes.JSONSlice[uuid.UUID]{p.tx.ID},
			Score:            normalize(p.breakdown.Total),
			Features:         datatypes.JSON(features),
			Status:           models.SuggestionPending,
			ItemDate:         p.item.Date,
		})
	}

	if err := g.suggestions.ReplacePending(ctx, f, suggestions); err != nil {
		return 0, err
	}
	log.Printf("generated %d suggestions for %s (min score %.2f)", len(suggestions), f.Key(), minScore)
	return len(suggestions), nil
}

func normalize(score int) float64 {
	return float64(score) / 100
}
