// Package search wraps the Elasticsearch bulk-update contract: conditional
// scripted updates for anomalous records and plain field updates for the
// full batch, both keyed by document id with update (not upsert) semantics.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"

	"github.com/logsieve/logsieve/pkg/config"
	"github.com/logsieve/logsieve/pkg/domain"
)

var (
	// ErrTransient marks a recoverable bulk failure (timeout or per-document
	// indexing errors). The caller should re-enqueue the batch.
	ErrTransient = errors.New("transient bulk failure")
	// ErrConnection marks a transport-level failure with no usable status.
	// The caller should reconnect before the next attempt.
	ErrConnection = errors.New("search connection failure")
)

// anomalyScript increments the anomaly counter and recomputes the severity
// label, guarded by a per-batch token so a retried batch cannot
// double-increment.
const anomalyScript = `if (ctx._source.anomaly_update_token != params.token) {
ctx._source.anomaly_update_token = params.token;
ctx._source.anomaly_predicted_count += 1;
ctx._source.drain_anomaly = true;
ctx._source.anomaly_level = ctx._source.anomaly_predicted_count == 1 ? 'Suspicious' : ctx._source.anomaly_predicted_count == 2 ? 'Anomaly' : 'Normal';
}`

// Client is the search-index client used by the persistence stage. It is
// not safe for concurrent use; the persistence stage is its only caller.
type Client struct {
	logger *zap.Logger
	cfg    config.ElasticConfig
	es     *elasticsearch.Client
}

// NewClient connects to the search index with retry-on-timeout enabled at
// the transport layer.
func NewClient(logger *zap.Logger, cfg config.ElasticConfig) (*Client, error) {
	c := &Client{logger: logger, cfg: cfg}
	if err := c.Reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconnect replaces the underlying connection pool. Used after a
// transport-level failure before the batch is retried.
func (c *Client) Reconnect() error {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:           []string{c.cfg.Endpoint},
		Username:            c.cfg.Username,
		Password:            c.cfg.Password,
		MaxRetries:          c.cfg.MaxRetries,
		RetryOnStatus:       []int{429, 502, 503},
		CompressRequestBody: true,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: c.cfg.SkipTLSVerify},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	c.es = es
	c.logger.Info("Search client connected", zap.String("endpoint", c.cfg.Endpoint))
	return nil
}

// UpdateAnomalies bulk-applies the conditional anomaly script to every
// record. Documents must already exist in the index.
func (c *Client) UpdateAnomalies(ctx context.Context, index, token string, records []domain.ScoredRecord) error {
	body, err := encodeScriptBody(token)
	if err != nil {
		return err
	}
	items := make([]bulkItem, 0, len(records))
	for _, rec := range records {
		items = append(items, bulkItem{id: rec.ID, body: body})
	}
	return c.bulkUpdate(ctx, index, items)
}

// UpdateTemplates bulk-applies the matched cluster id and support fields to
// every record in the batch.
func (c *Client) UpdateTemplates(ctx context.Context, index string, records []domain.ScoredRecord) error {
	items := make([]bulkItem, 0, len(records))
	for _, rec := range records {
		body, err := encodeDocBody(rec)
		if err != nil {
			return err
		}
		items = append(items, bulkItem{id: rec.ID, body: body})
	}
	return c.bulkUpdate(ctx, index, items)
}

type bulkItem struct {
	id   string
	body []byte
}

func (c *Client) bulkUpdate(ctx context.Context, index string, items []bulkItem) error {
	var transportErr error
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     c.es,
		Index:      index,
		NumWorkers: 1,
		Timeout:    c.cfg.RequestTimeout,
		OnError: func(_ context.Context, err error) {
			transportErr = err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for _, item := range items {
		err := bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "update",
			DocumentID: item.id,
			Body:       bytes.NewReader(item.body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				// Per-document failure; the rest of the stream continues.
				c.logger.Error("Bulk update failed for document",
					zap.String("document_id", item.DocumentID),
					zap.String("error_type", res.Error.Type),
					zap.String("error_reason", res.Error.Reason),
					zap.Error(err),
				)
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return classify(err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return classify(err)
	}
	if transportErr != nil {
		return classify(transportErr)
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		return fmt.Errorf("%d of %d documents failed: %w", stats.NumFailed, len(items), ErrTransient)
	}
	return nil
}

// classify maps a low-level error to the retry taxonomy: timeouts are
// transient, anything else without a status is a connection failure.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

type scriptBody struct {
	Script script `json:"script"`
}

type script struct {
	Source string            `json:"source"`
	Lang   string            `json:"lang"`
	Params map[string]string `json:"params"`
}

type docBody struct {
	Doc templateFields `json:"doc"`
}

type templateFields struct {
	ClusterID int64 `json:"drain_matched_template_id"`
	Support   int64 `json:"drain_matched_template_support"`
}
