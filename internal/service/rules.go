package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
)

// Rule names, used in processing issues and trigger criteria
const (
	ruleHighValue       = "high_value"
	ruleStructuring     = "structuring"
	ruleRapidSuccession = "rapid_succession"
	ruleCounterparty    = "unusual_counterparty_volume"
	ruleRoundTrip       = "round_trip"
)

// Tags attached to transactions by the rules
const (
	tagHighValue       = "high-value"
	tagStructuring     = "structuring"
	tagRapidSuccession = "rapid-succession"
	tagUnusualVolume   = "unusual-volume"
	tagRoundTrip       = "round-trip"
)

// evaluator applies the fixed ordered rule set over a case's transactions.
// It is pure: all persistence is left to the caller.
type evaluator struct {
	cfg config.AnalysisConfig
}

func newEvaluator(cfg config.AnalysisConfig) *evaluator {
	return &evaluator{cfg: cfg}
}

// evaluationOutput collects per-transaction derived fields, alert
// candidates, and per-item failures from one evaluation pass.
type evaluationOutput struct {
	assessments map[uuid.UUID]*domain.RiskAssessment
	candidates  []domain.AlertCandidate
	issues      []domain.ProcessingIssue
	evaluated   int
}

// evaluate runs every rule over the given snapshot. A transaction that a
// rule cannot process is skipped for that rule with an accumulated issue;
// it never aborts the other rules or transactions.
func (e *evaluator) evaluate(accounts []*domain.FinancialAccount, transactions []*domain.FinancialTransaction) *evaluationOutput {
	out := &evaluationOutput{assessments: make(map[uuid.UUID]*domain.RiskAssessment)}

	valid := make([]*domain.FinancialTransaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.TransactionDate.IsZero() {
			out.issues = append(out.issues, domain.ProcessingIssue{
				TransactionID: tx.TransactionID,
				Rule:          "window_rules",
				Reason:        "transaction date is missing",
			})
			continue
		}
		if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
			out.issues = append(out.issues, domain.ProcessingIssue{
				TransactionID: tx.TransactionID,
				Rule:          "amount_rules",
				Reason:        "transaction amount is not a finite number",
			})
			continue
		}
		valid = append(valid, tx)
	}
	out.evaluated = len(valid)

	byAccount := groupByAccount(valid)
	owners := accountOwners(accounts, byAccount)

	e.ruleHighValue(out, valid)
	for accountID, accountTxs := range byAccount {
		e.ruleStructuring(out, accountID, accountTxs)
		e.ruleRapidSuccession(out, accountID, accountTxs)
		e.ruleCounterpartyVolume(out, accountID, accountTxs)
	}
	e.ruleRoundTrip(out, byAccount, owners)

	return out
}

// contribute records one rule hit: the final score is the max of all
// contributing rule scores, suspicion follows the configurable threshold.
func (e *evaluator) contribute(out *evaluationOutput, tx *domain.FinancialTransaction, score float64, tag string) {
	a := out.assessments[tx.TransactionID]
	if a == nil {
		a = &domain.RiskAssessment{TransactionID: tx.TransactionID}
		out.assessments[tx.TransactionID] = a
	}
	if score > a.RiskScore {
		a.RiskScore = score
	}
	a.IsSuspicious = a.RiskScore >= e.cfg.SuspiciousScoreThreshold
	for _, existing := range a.Tags {
		if existing == tag {
			return
		}
	}
	a.Tags = append(a.Tags, tag)
}

// ruleHighValue flags any single movement above the absolute threshold
func (e *evaluator) ruleHighValue(out *evaluationOutput, txs []*domain.FinancialTransaction) {
	for _, tx := range txs {
		if math.Abs(tx.Amount) > e.cfg.HighValueThreshold {
			e.contribute(out, tx, e.cfg.HighValueScore, tagHighValue)
		}
	}
}

// ruleStructuring detects several sub-threshold transactions on one
// account inside a sliding window whose sum crosses the reporting
// threshold. The alert is anchored to the earliest transaction of the
// window so re-runs dedupe to the same key.
func (e *evaluator) ruleStructuring(out *evaluationOutput, accountID uuid.UUID, accountTxs []*domain.FinancialTransaction) {
	sub := make([]*domain.FinancialTransaction, 0, len(accountTxs))
	for _, tx := range accountTxs {
		if math.Abs(tx.Amount) < e.cfg.HighValueThreshold {
			sub = append(sub, tx)
		}
	}

	i := 0
	for i < len(sub) {
		j := i
		sum := 0.0
		for j < len(sub) && sub[j].TransactionDate.Sub(sub[i].TransactionDate) <= e.cfg.StructuringWindow {
			sum += math.Abs(sub[j].Amount)
			j++
		}
		if j-i >= 2 && sum > e.cfg.HighValueThreshold {
			window := sub[i:j]
			ids := make([]uuid.UUID, 0, len(window))
			for _, tx := range window {
				e.contribute(out, tx, e.cfg.StructuringScore, tagStructuring)
				ids = append(ids, tx.TransactionID)
			}
			anchor := window[0]
			out.candidates = append(out.candidates, domain.AlertCandidate{
				CaseID:        anchor.CaseID,
				TransactionID: &anchor.TransactionID,
				AlertType:     domain.AlertTypeStructuring,
				Severity:      domain.SeverityHigh,
				Title:         "Possible structuring pattern detected",
				Description: fmt.Sprintf("%d transactions totaling %.2f within %s, each below the %.2f reporting threshold",
					len(window), sum, e.cfg.StructuringWindow, e.cfg.HighValueThreshold),
				TriggerCriteria: mustJSON(map[string]any{
					"rule":                 ruleStructuring,
					"account_id":           accountID.String(),
					"window":               e.cfg.StructuringWindow.String(),
					"high_value_threshold": e.cfg.HighValueThreshold,
					"transaction_count":    len(window),
					"total_amount":         sum,
					"window_start":         window[0].TransactionDate,
					"window_end":           window[len(window)-1].TransactionDate,
				}),
				DetectedPatterns: mustJSON(map[string]any{"transaction_ids": ids}),
			})
			i = j
			continue
		}
		i++
	}
}

// ruleRapidSuccession flags bursts of N or more transactions on one
// account within a short window
func (e *evaluator) ruleRapidSuccession(out *evaluationOutput, accountID uuid.UUID, accountTxs []*domain.FinancialTransaction) {
	i := 0
	for i < len(accountTxs) {
		j := i
		for j < len(accountTxs) && accountTxs[j].TransactionDate.Sub(accountTxs[i].TransactionDate) <= e.cfg.RapidSuccessionWindow {
			j++
		}
		if j-i >= e.cfg.RapidSuccessionCount {
			burst := accountTxs[i:j]
			ids := make([]uuid.UUID, 0, len(burst))
			for _, tx := range burst {
				e.contribute(out, tx, e.cfg.RapidSuccessionScore, tagRapidSuccession)
				ids = append(ids, tx.TransactionID)
			}
			anchor := burst[0]
			out.candidates = append(out.candidates, domain.AlertCandidate{
				CaseID:        anchor.CaseID,
				TransactionID: &anchor.TransactionID,
				AlertType:     domain.AlertTypeRapidSuccession,
				Severity:      domain.SeverityMedium,
				Title:         "Rapid transaction succession detected",
				Description: fmt.Sprintf("%d transactions on one account within %s",
					len(burst), e.cfg.RapidSuccessionWindow),
				TriggerCriteria: mustJSON(map[string]any{
					"rule":              ruleRapidSuccession,
					"account_id":        accountID.String(),
					"window":            e.cfg.RapidSuccessionWindow.String(),
					"count_threshold":   e.cfg.RapidSuccessionCount,
					"transaction_count": len(burst),
					"window_start":      burst[0].TransactionDate,
				}),
				DetectedPatterns: mustJSON(map[string]any{"transaction_ids": ids}),
			})
			i = j
			continue
		}
		i++
	}
}

// ruleCounterpartyVolume flags counterparties whose aggregate volume is a
// statistical outlier against the account's per-transaction amounts
func (e *evaluator) ruleCounterpartyVolume(out *evaluationOutput, accountID uuid.UUID, accountTxs []*domain.FinancialTransaction) {
	if len(accountTxs) < e.cfg.CounterpartyMinSamples {
		return
	}

	mean, stddev := amountStats(accountTxs)
	bound := mean + e.cfg.CounterpartySigmaBound*stddev

	byCounterparty := make(map[string][]*domain.FinancialTransaction)
	for _, tx := range accountTxs {
		if tx.CounterpartyName == "" {
			continue
		}
		byCounterparty[tx.CounterpartyName] = append(byCounterparty[tx.CounterpartyName], tx)
	}

	names := make([]string, 0, len(byCounterparty))
	for name := range byCounterparty {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := byCounterparty[name]
		aggregate := 0.0
		for _, tx := range group {
			aggregate += math.Abs(tx.Amount)
		}
		if aggregate <= bound {
			continue
		}
		ids := make([]uuid.UUID, 0, len(group))
		for _, tx := range group {
			e.contribute(out, tx, e.cfg.CounterpartyScore, tagUnusualVolume)
			ids = append(ids, tx.TransactionID)
		}
		anchor := group[0]
		out.candidates = append(out.candidates, domain.AlertCandidate{
			CaseID:        anchor.CaseID,
			TransactionID: &anchor.TransactionID,
			AlertType:     domain.AlertTypeUnusualVolume,
			Severity:      domain.SeverityHigh,
			Title:         "Unusual counterparty volume",
			Description: fmt.Sprintf("Counterparty %q moved %.2f against an account mean of %.2f",
				name, aggregate, mean),
			TriggerCriteria: mustJSON(map[string]any{
				"rule":             ruleCounterparty,
				"account_id":       accountID.String(),
				"counterparty":     name,
				"aggregate_volume": aggregate,
				"account_mean":     mean,
				"account_stddev":   stddev,
				"sigma_bound":      e.cfg.CounterpartySigmaBound,
			}),
			DetectedPatterns: mustJSON(map[string]any{"transaction_ids": ids}),
		})
	}
}

// ruleRoundTrip detects funds leaving an account and returning, directly
// or via one intermediate hop, within the configured window and amount
// tolerance. Hops are inferred by matching counterparty names to the
// owner names of the case's other accounts.
func (e *evaluator) ruleRoundTrip(out *evaluationOutput, byAccount map[uuid.UUID][]*domain.FinancialTransaction, owners map[string][]*domain.FinancialTransaction) {
	accountIDs := make([]uuid.UUID, 0, len(byAccount))
	for id := range byAccount {
		accountIDs = append(accountIDs, id)
	}
	sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i].String() < accountIDs[j].String() })

	for _, accountID := range accountIDs {
		accountTxs := byAccount[accountID]
		for _, outTx := range accountTxs {
			if !isOutflow(outTx) || outTx.CounterpartyName == "" {
				continue
			}
			returnTx, hops := e.findReturn(outTx, accountTxs, owners)
			if returnTx == nil {
				continue
			}

			e.contribute(out, outTx, e.cfg.RoundTripScore, tagRoundTrip)
			e.contribute(out, returnTx, e.cfg.RoundTripScore, tagRoundTrip)
			out.candidates = append(out.candidates, domain.AlertCandidate{
				CaseID:        outTx.CaseID,
				TransactionID: &outTx.TransactionID,
				AlertType:     domain.AlertTypeRoundTrip,
				Severity:      domain.SeverityCritical,
				Title:         "Round-trip fund movement detected",
				Description: fmt.Sprintf("Funds sent to %q returned within %s via %d intermediate hop(s)",
					outTx.CounterpartyName, e.cfg.RoundTripWindow, hops),
				TriggerCriteria: mustJSON(map[string]any{
					"rule":            ruleRoundTrip,
					"account_id":      accountID.String(),
					"counterparty":    outTx.CounterpartyName,
					"outbound_amount": math.Abs(outTx.Amount),
					"return_amount":   math.Abs(returnTx.Amount),
					"window":          e.cfg.RoundTripWindow.String(),
					"tolerance":       e.cfg.RoundTripTolerance,
					"hops":            hops,
				}),
				DetectedPatterns: mustJSON(map[string]any{
					"transaction_ids": []uuid.UUID{outTx.TransactionID, returnTx.TransactionID},
				}),
			})
		}
	}
}

// findReturn looks for an inflow closing the loop opened by outTx.
// Direct: money back from the same counterparty. One hop: money back from a
// party that the outbound counterparty (a case account owner) paid in between.
func (e *evaluator) findReturn(outTx *domain.FinancialTransaction, accountTxs []*domain.FinancialTransaction, owners map[string][]*domain.FinancialTransaction) (*domain.FinancialTransaction, int) {
	deadline := outTx.TransactionDate.Add(e.cfg.RoundTripWindow)

	for _, inTx := range accountTxs {
		if !isInflow(inTx) {
			continue
		}
		if !inTx.TransactionDate.After(outTx.TransactionDate) || inTx.TransactionDate.After(deadline) {
			continue
		}
		if !e.amountsClose(outTx.Amount, inTx.Amount) {
			continue
		}
		if inTx.CounterpartyName == outTx.CounterpartyName {
			return inTx, 0
		}
		// One intermediate hop: the original counterparty owns a case
		// account that paid the party the money came back from.
		if e.hopLinks(outTx.CounterpartyName, inTx.CounterpartyName, outTx.TransactionDate, inTx.TransactionDate, owners) {
			return inTx, 1
		}
	}
	return nil, 0
}

func (e *evaluator) hopLinks(intermediary, returner string, after, before time.Time, owners map[string][]*domain.FinancialTransaction) bool {
	if returner == "" {
		return false
	}
	for _, midTx := range owners[intermediary] {
		if !isOutflow(midTx) || midTx.CounterpartyName != returner {
			continue
		}
		if midTx.TransactionDate.After(after) && !midTx.TransactionDate.After(before) {
			return true
		}
	}
	return false
}

func (e *evaluator) amountsClose(a, b float64) bool {
	a, b = math.Abs(a), math.Abs(b)
	if a == 0 {
		return b == 0
	}
	return math.Abs(a-b) <= e.cfg.RoundTripTolerance*a
}

// groupByAccount splits transactions per account, each group sorted by
// date then ID so window rules are deterministic across runs
func groupByAccount(txs []*domain.FinancialTransaction) map[uuid.UUID][]*domain.FinancialTransaction {
	grouped := make(map[uuid.UUID][]*domain.FinancialTransaction)
	for _, tx := range txs {
		grouped[tx.AccountID] = append(grouped[tx.AccountID], tx)
	}
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].TransactionDate.Equal(group[j].TransactionDate) {
				return group[i].TransactionDate.Before(group[j].TransactionDate)
			}
			return group[i].TransactionID.String() < group[j].TransactionID.String()
		})
	}
	return grouped
}

// accountOwners indexes a case's transactions by the owner name of the
// account they belong to, for hop inference
func accountOwners(accounts []*domain.FinancialAccount, byAccount map[uuid.UUID][]*domain.FinancialTransaction) map[string][]*domain.FinancialTransaction {
	owners := make(map[string][]*domain.FinancialTransaction, len(accounts))
	for _, account := range accounts {
		if account.OwnerName == "" {
			continue
		}
		owners[account.OwnerName] = append(owners[account.OwnerName], byAccount[account.AccountID]...)
	}
	return owners
}

// amountStats returns mean and population standard deviation of the
// absolute transaction amounts
func amountStats(txs []*domain.FinancialTransaction) (mean, stddev float64) {
	if len(txs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, tx := range txs {
		sum += math.Abs(tx.Amount)
	}
	mean = sum / float64(len(txs))

	variance := 0.0
	for _, tx := range txs {
		d := math.Abs(tx.Amount) - mean
		variance += d * d
	}
	variance /= float64(len(txs))
	return mean, math.Sqrt(variance)
}

func isOutflow(tx *domain.FinancialTransaction) bool {
	if tx.TransactionType.IsOutflow() {
		return true
	}
	if tx.TransactionType.IsInflow() {
		return false
	}
	return tx.Amount < 0
}

func isInflow(tx *domain.FinancialTransaction) bool {
	if tx.TransactionType.IsInflow() {
		return true
	}
	if tx.TransactionType.IsOutflow() {
		return false
	}
	return tx.Amount > 0
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return data
}
