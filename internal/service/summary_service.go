package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SummaryService computes case-level financial summaries on demand.
// Read-only: it reflects the persisted state at call time.
type SummaryService struct {
	store  LedgerStore
	cases  CaseDirectory
	cfg    config.AnalysisConfig
	logger *zap.Logger
}

func NewSummaryService(store LedgerStore, cases CaseDirectory, cfg config.AnalysisConfig, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		store:  store,
		cases:  cases,
		cfg:    cfg,
		logger: logger,
	}
}

// Summarize aggregates the case's accounts, transactions, and alerts.
// A case with zero transactions yields zeroed totals and empty lists.
func (s *SummaryService) Summarize(ctx context.Context, caseID uuid.UUID) (*domain.FinancialSummary, error) {
	exists, err := s.cases.CaseExists(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case lookup failed: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("case", caseID.String())
	}

	accounts, err := s.store.ListAccounts(ctx, caseID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.store.ListTransactions(ctx, domain.TransactionFilter{CaseID: &caseID})
	if err != nil {
		return nil, err
	}
	alertCount, err := s.store.CountAlerts(ctx, caseID)
	if err != nil {
		return nil, err
	}

	summary := &domain.FinancialSummary{
		CaseID:            caseID,
		TotalAccounts:     len(accounts),
		TotalTransactions: len(transactions),
		TotalAlerts:       int(alertCount),
		TopCounterparties: []domain.CounterpartyVolume{},
		Timeline:          []domain.TimelineBucket{},
		GeneratedAt:       time.Now().UTC(),
	}

	counterparties := make(map[string]*domain.CounterpartyVolume)
	buckets := make(map[time.Time]*domain.TimelineBucket)

	for _, tx := range transactions {
		amount := math.Abs(tx.Amount)
		credit := isInflow(tx)
		if credit {
			summary.TotalCredits += amount
		} else {
			summary.TotalDebits += amount
		}
		if tx.RiskScore >= s.cfg.SuspiciousScoreThreshold {
			summary.HighRiskTransactions++
		}

		if tx.CounterpartyName != "" {
			cp := counterparties[tx.CounterpartyName]
			if cp == nil {
				cp = &domain.CounterpartyVolume{Counterparty: tx.CounterpartyName}
				counterparties[tx.CounterpartyName] = cp
			}
			cp.TransactionCount++
			cp.TotalVolume += amount
		}

		if !tx.TransactionDate.IsZero() {
			day := tx.TransactionDate.UTC().Truncate(24 * time.Hour)
			bucket := buckets[day]
			if bucket == nil {
				bucket = &domain.TimelineBucket{Date: day}
				buckets[day] = bucket
			}
			if credit {
				bucket.TotalCredits += amount
			} else {
				bucket.TotalDebits += amount
			}
			bucket.NetFlow = bucket.TotalCredits - bucket.TotalDebits
		}
	}

	summary.NetFlow = summary.TotalCredits - summary.TotalDebits

	for _, cp := range counterparties {
		summary.TopCounterparties = append(summary.TopCounterparties, *cp)
	}
	sort.Slice(summary.TopCounterparties, func(i, j int) bool {
		a, b := summary.TopCounterparties[i], summary.TopCounterparties[j]
		if a.TotalVolume != b.TotalVolume {
			return a.TotalVolume > b.TotalVolume
		}
		return a.Counterparty < b.Counterparty
	})
	if len(summary.TopCounterparties) > s.cfg.TopCounterparties {
		summary.TopCounterparties = summary.TopCounterparties[:s.cfg.TopCounterparties]
	}

	for _, bucket := range buckets {
		summary.Timeline = append(summary.Timeline, *bucket)
	}
	sort.Slice(summary.Timeline, func(i, j int) bool {
		return summary.Timeline[i].Date.Before(summary.Timeline[j].Date)
	})

	return summary, nil
}
