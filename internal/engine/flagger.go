package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

var four = decimal.NewFromInt(4)

// amountStats holds the sum and sum of squares of a population so the
// statistics excluding any one member can be derived exactly.
type amountStats struct {
	sum   decimal.Decimal
	sumSq decimal.Decimal
	count int
}

func newAmountStats(transactions []model.Transaction) amountStats {
	stats := amountStats{sum: decimal.Zero, sumSq: decimal.Zero}
	for _, txn := range transactions {
		stats.sum = stats.sum.Add(txn.Amount)
		stats.sumSq = stats.sumSq.Add(txn.Amount.Mul(txn.Amount))
		stats.count++
	}
	return stats
}

// isOutlier reports whether x lies more than two population standard
// deviations from the mean of every other member. With n others, sum S and
// sum of squares Q this is (n*x - S)^2 > 4*(n*Q - S^2), which needs no
// division or square root. An empty population has mean and deviation zero,
// so a lone member is an outlier unless its amount is zero.
func (s amountStats) isOutlier(x decimal.Decimal) bool {
	n := s.count - 1
	if n < 1 {
		return !x.IsZero()
	}
	others := decimal.NewFromInt(int64(n))
	sum := s.sum.Sub(x)
	sumSq := s.sumSq.Sub(x.Mul(x))

	deviation := others.Mul(x).Sub(sum)
	variance := others.Mul(sumSq).Sub(sum.Mul(sum))

	return deviation.Mul(deviation).GreaterThan(four.Mul(variance))
}

// FlagOwner loads the owner's transactions and runs a flagging pass over them.
func (e *Engine) FlagOwner(ctx context.Context, ownerID string) (*service.FlagResult, error) {
	transactions, err := e.storage.ListTransactions(ctx, ownerID, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return e.FlagTransactions(ctx, ownerID, transactions)
}

// FlagTransactions runs one sequential anomaly pass. Transactions of other
// owners are ignored and approved transactions are skipped, although their
// amounts still count toward the population statistics. Detected flags are
// merged into the stored flag set, so repeating a pass changes nothing.
func (e *Engine) FlagTransactions(ctx context.Context, ownerID string, transactions []model.Transaction) (*service.FlagResult, error) {
	start := time.Now()

	owned := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.OwnerID == ownerID {
			owned = append(owned, txn)
		}
	}
	ordered := e.orderForFlagging(owned)

	stats := newAmountStats(owned)
	seen := make(map[string]bool, len(ordered))
	result := &service.FlagResult{FlagsAdded: make(map[model.Flag]int)}

	slog.Info("Flagging transactions", "owner_id", ownerID, "count", len(ordered), "order", e.config.Order)

	for i, txn := range ordered {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		if txn.WasApproved {
			result.SkippedApproved++
			e.report("flag", i+1, len(ordered))
			continue
		}

		detected := detectFlags(txn, seen, stats)
		result.Processed++

		if len(detected) > 0 {
			added, err := e.storage.AddTransactionFlags(ctx, ownerID, txn.ID, detected...)
			if err != nil {
				slog.Warn("failed to flag transaction",
					"owner_id", ownerID,
					"transaction_id", txn.ID,
					"error", err)
				result.Failures = append(result.Failures, service.ItemFailure{
					TransactionID: txn.ID,
					Message:       err.Error(),
					Err:           err,
				})
			} else {
				result.Flagged++
				for _, flag := range added {
					result.FlagsAdded[flag]++
				}
			}
		}

		e.report("flag", i+1, len(ordered))

		if e.config.Throttle > 0 && i < len(ordered)-1 {
			select {
			case <-time.After(e.config.Throttle):
			case <-ctx.Done():
			}
		}
	}

	result.Duration = time.Since(start)
	slog.Info("Flagging complete",
		"owner_id", ownerID,
		"processed", result.Processed,
		"skipped_approved", result.SkippedApproved,
		"flagged", result.Flagged,
		"failures", len(result.Failures),
		"duration", result.Duration)

	return result, nil
}

// detectFlags applies the fixed heuristics to one transaction. The duplicate
// key is recorded after the check so only later occurrences are flagged.
func detectFlags(txn model.Transaction, seen map[string]bool, stats amountStats) []model.Flag {
	var flags []model.Flag

	key := txn.DuplicateKey()
	if seen[key] {
		flags = append(flags, model.FlagDuplicate)
	}
	seen[key] = true

	if stats.isOutlier(txn.Amount) {
		flags = append(flags, model.FlagUnusualAmount)
	}

	if !txn.HasDescription() || !txn.HasDate() {
		flags = append(flags, model.FlagIncomplete)
	}

	if len(txn.Categories) == 0 {
		flags = append(flags, model.FlagUncategorized)
	}

	return flags
}

// orderForFlagging returns a copy of transactions in the configured order.
// Ties keep their input order.
func (e *Engine) orderForFlagging(transactions []model.Transaction) []model.Transaction {
	ordered := make([]model.Transaction, len(transactions))
	copy(ordered, transactions)

	switch e.config.Order {
	case OrderDate:
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if a.HasDate() != b.HasDate() {
				return a.HasDate()
			}
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	case OrderInput:
	default:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		})
	}

	return ordered
}
