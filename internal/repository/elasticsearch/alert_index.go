package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	elastic "github.com/elastic/go-elasticsearch/v8"
)

// AlertIndex mirrors financial alerts into Elasticsearch so investigators
// can full-text search titles, descriptions, and trigger criteria.
// Indexing is best effort; Postgres remains the source of truth.
type AlertIndex struct {
	client *elastic.Client
	index  string
}

// NewAlertIndex creates a new alert search index
func NewAlertIndex(cfg config.ElasticsearchConfig) (*AlertIndex, error) {
	client, err := elastic.NewClient(elastic.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Verify connection
	if _, err := client.Info(); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return &AlertIndex{
		client: client,
		index:  cfg.Index,
	}, nil
}

// IndexAlert indexes (or re-indexes) one alert document
func (r *AlertIndex) IndexAlert(ctx context.Context, alert *domain.FinancialAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(alert.AlertID.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to index alert: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

// SearchAlerts runs a query-string search over the alert index
func (r *AlertIndex) SearchAlerts(ctx context.Context, query string, from, size int) ([]*domain.FinancialAlert, int64, error) {
	esQuery := map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": query,
			},
		},
		"sort": []map[string]interface{}{
			{"created_at": "desc"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to perform search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, 0, nil
	}

	var total int64
	if totalMap, ok := hitsMap["total"].(map[string]interface{}); ok {
		if val, ok := totalMap["value"].(float64); ok {
			total = int64(val)
		}
	}

	hitsList, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, total, nil
	}

	var alerts []*domain.FinancialAlert
	for _, hit := range hitsList {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		sourceBytes, _ := json.Marshal(source)
		var alert domain.FinancialAlert
		if err := json.Unmarshal(sourceBytes, &alert); err == nil {
			alerts = append(alerts, &alert)
		}
	}

	return alerts, total, nil
}
