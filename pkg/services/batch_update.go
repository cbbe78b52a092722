package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/models"
	"github.com/sellercentry/account-health/pkg/sheets"
	"github.com/sellercentry/account-health/pkg/workpool"
)

// BatchConfig bounds one batch call. The Sheets API allows roughly 60 write
// requests per minute per user, which the defaults stay under.
type BatchConfig struct {
	MaxItems   int
	ChunkSize  int
	ChunkDelay time.Duration
}

// DefaultBatchConfig returns the production batch limits.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxItems:   100,
		ChunkSize:  10,
		ChunkDelay: time.Second,
	}
}

// BatchItem is one sparse update within a batch.
type BatchItem struct {
	ID     string              `json:"id"`
	Fields models.FieldUpdates `json:"fields"`
}

// BatchItemResult is the outcome of one item, reported in input order.
type BatchItemResult struct {
	ID    string         `json:"id"`
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	Kind  apperrors.Kind `json:"kind,omitempty"`
}

// BatchResult collects every item outcome. OK is true iff no item failed.
type BatchResult struct {
	OK        bool              `json:"ok"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// RowUpdater applies one sparse update. *TenantSheet implements it.
type RowUpdater interface {
	ApplyUpdate(ctx context.Context, table *sheets.LogicalTable, id string, fields models.FieldUpdates) error
}

// BatchUpdater runs chunks of updates: every item of a chunk concurrently,
// chunks one after another with a fixed pause between them.
type BatchUpdater struct {
	config BatchConfig
	pool   *workpool.Pool
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewBatchUpdater creates a BatchUpdater. Zero config fields take defaults.
func NewBatchUpdater(config BatchConfig, logger *zap.Logger) *BatchUpdater {
	defaults := DefaultBatchConfig()
	if config.MaxItems <= 0 {
		config.MaxItems = defaults.MaxItems
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.ChunkDelay < 0 {
		config.ChunkDelay = 0
	}
	return &BatchUpdater{
		config: config,
		pool:   workpool.New(workpool.Config{MaxConcurrent: config.ChunkSize}, logger),
		sleep:  sleepContext,
		logger: logger.Named("batch"),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Apply runs items against table. Empty input and input above MaxItems are
// rejected before any backend call. Item failures never abort the batch.
func (b *BatchUpdater) Apply(ctx context.Context, sheet RowUpdater, table *sheets.LogicalTable, items []BatchItem) (*BatchResult, error) {
	const op = "batch.Apply"

	if len(items) == 0 {
		return nil, apperrors.New(apperrors.KindInvalid, op, "batch must contain at least one item")
	}
	if len(items) > b.config.MaxItems {
		return nil, apperrors.New(apperrors.KindInvalid, op,
			fmt.Sprintf("batch of %d items exceeds the limit of %d", len(items), b.config.MaxItems))
	}

	result := &BatchResult{Results: make([]BatchItemResult, len(items))}

	for start := 0; start < len(items); start += b.config.ChunkSize {
		end := min(start+b.config.ChunkSize, len(items))

		if start > 0 {
			if err := b.sleep(ctx, b.config.ChunkDelay); err != nil {
				b.logger.Warn("Batch cancelled between chunks",
					zap.Int("completed", start),
					zap.Int("remaining", len(items)-start),
					zap.Error(err))
				for i := start; i < len(items); i++ {
					result.Results[i] = failedItem(items[i].ID, err)
				}
				break
			}
		}

		chunk := make([]workpool.Item[struct{}], 0, end-start)
		for _, item := range items[start:end] {
			item := item
			chunk = append(chunk, workpool.Item[struct{}]{
				ID: item.ID,
				Execute: func(ctx context.Context) (struct{}, error) {
					return struct{}{}, sheet.ApplyUpdate(ctx, table, item.ID, item.Fields)
				},
			})
		}

		for i, r := range workpool.Process(ctx, b.pool, chunk) {
			if r.Err != nil {
				result.Results[start+i] = failedItem(r.ID, r.Err)
				continue
			}
			result.Results[start+i] = BatchItemResult{ID: r.ID, OK: true}
		}
	}

	for _, r := range result.Results {
		if r.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	result.OK = result.Failed == 0

	b.logger.Info("Batch applied",
		zap.String("table", table.Key),
		zap.Int("items", len(items)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func failedItem(id string, err error) BatchItemResult {
	return BatchItemResult{
		ID:    id,
		Error: apperrors.MessageOf(err),
		Kind:  apperrors.KindOf(err),
	}
}
