package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/courtcase/financial-analysis/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestConsumer consumes transactions extracted from case documents and
// feeds them through the normalizer into the ledger, re-running analysis
// for the affected case after each successful ingest.
type IngestConsumer struct {
	consumerGroup sarama.ConsumerGroup
	ledger        *service.LedgerService
	analysis      *service.AnalysisService
	topics        []string
	logger        *zap.Logger
}

func NewIngestConsumer(cfg config.KafkaConfig, ledger *service.LedgerService, analysis *service.AnalysisService, logger *zap.Logger) (*IngestConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Version = sarama.V2_8_0_0

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	topics := []string{cfg.ExtractionTopic, cfg.TransactionTopic}

	return &IngestConsumer{
		consumerGroup: consumerGroup,
		ledger:        ledger,
		analysis:      analysis,
		topics:        topics,
		logger:        logger,
	}, nil
}

func (c *IngestConsumer) Start(ctx context.Context) error {
	handler := &ingestHandler{
		ledger:   c.ledger,
		analysis: c.analysis,
		logger:   c.logger,
	}

	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
			if ctx.Err() != nil {
				return nil // Context canceled
			}
			c.logger.Error("error from consumer", zap.Error(err))
			time.Sleep(time.Second * 5) // Retry backoff
		}
	}
}

func (c *IngestConsumer) Close() error {
	return c.consumerGroup.Close()
}

// extractedTransactionEvent is the wire shape published by the document
// extraction pipeline
type extractedTransactionEvent struct {
	CaseID              uuid.UUID  `json:"case_id"`
	AccountID           uuid.UUID  `json:"account_id"`
	DocumentID          *uuid.UUID `json:"document_id,omitempty"`
	TransactionDate     *time.Time `json:"transaction_date"`
	Amount              *float64   `json:"amount"`
	Currency            string     `json:"currency"`
	TransactionType     string     `json:"transaction_type"`
	Description         string     `json:"description"`
	CounterpartyName    string     `json:"counterparty_name"`
	CounterpartyAccount *string    `json:"counterparty_account,omitempty"`
	ExtractedBy         uuid.UUID  `json:"extracted_by"`
}

type ingestHandler struct {
	ledger   *service.LedgerService
	analysis *service.AnalysisService
	logger   *zap.Logger
}

func (h *ingestHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *ingestHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *ingestHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.processMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *ingestHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	var event extractedTransactionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal extraction event",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return // Skip malformed
	}

	req := domain.CreateTransactionRequest{
		AccountID:           event.AccountID,
		CaseID:              event.CaseID,
		DocumentID:          event.DocumentID,
		TransactionDate:     event.TransactionDate,
		Amount:              event.Amount,
		Currency:            event.Currency,
		TransactionType:     event.TransactionType,
		Description:         event.Description,
		CounterpartyName:    event.CounterpartyName,
		CounterpartyAccount: event.CounterpartyAccount,
	}

	var tx *domain.FinancialTransaction
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		created, err := h.ledger.CreateTransaction(ctx, req, event.ExtractedBy)
		if err != nil {
			if domain.IsValidation(err) || domain.IsNotFound(err) {
				// Retrying cannot fix bad input; drop with a log line
				h.logger.Warn("dropping invalid extraction event",
					zap.String("topic", msg.Topic),
					zap.Error(err),
				)
				return
			}
			h.logger.Error("failed to ingest transaction",
				zap.String("topic", msg.Topic),
				zap.Error(err),
				zap.Int("retry", i+1),
			)
			if i < maxRetries-1 {
				time.Sleep(time.Duration(i+1) * time.Second) // Simple backoff
				continue
			}
			h.logger.Error("dropping extraction event after retries",
				zap.String("case_id", event.CaseID.String()),
			)
			return
		}
		tx = created
		break
	}
	if tx == nil {
		return
	}

	// Ingestion triggers re-analysis for the affected case. Analysis is
	// idempotent, so a duplicate trigger is harmless.
	if _, err := h.analysis.AnalyzeIngested(ctx, tx); err != nil {
		h.logger.Error("post-ingest analysis failed",
			zap.String("case_id", tx.CaseID.String()),
			zap.String("transaction_id", tx.TransactionID.String()),
			zap.Error(err),
		)
	}
}
