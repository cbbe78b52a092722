package sheets

import (
	"context"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/retry"
)

// TabResolution is the outcome of alias discovery. Found is false when no
// alias exists; that is a value, not an error.
type TabResolution struct {
	Name  string
	Found bool
}

// TabResolver discovers which alias of a logical table exists.
type TabResolver struct {
	client Client
	retry  *retry.Config
	logger *zap.Logger
}

// NewTabResolver creates a TabResolver. A nil retry config uses defaults.
func NewTabResolver(client Client, retryCfg *retry.Config, logger *zap.Logger) *TabResolver {
	return &TabResolver{
		client: client,
		retry:  retryCfg,
		logger: logger.Named("tab-resolver"),
	}
}

// Resolve probes aliases in order and returns the first that exists. A tab
// exists when its probe read does not fail with ErrTabNotFound, so an empty
// tab counts. Any other failure aborts discovery and is returned as is.
func (r *TabResolver) Resolve(ctx context.Context, spreadsheetID string, aliases []string) (TabResolution, error) {
	for _, alias := range aliases {
		err := retry.DoIfRetryable(ctx, r.retry, func() error {
			return r.client.Probe(ctx, spreadsheetID, alias)
		})
		if err == nil {
			r.logger.Debug("Resolved tab",
				zap.String("spreadsheet_id", spreadsheetID),
				zap.String("tab", alias))
			return TabResolution{Name: alias, Found: true}, nil
		}
		if IsTabNotFound(err) {
			continue
		}
		return TabResolution{}, err
	}

	r.logger.Debug("No tab matched aliases",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.Strings("aliases", aliases))
	return TabResolution{}, nil
}
