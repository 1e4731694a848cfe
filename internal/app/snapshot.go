package app

import (
	"context"
	"fmt"

	"shapeCluster/config"
	"shapeCluster/internal/adapters/sqlite"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/market"
	"shapeCluster/internal/ports"
	"shapeCluster/internal/utils"
)

// LoadSnapshot reads the price and ratio tables from the configured data source.
// Without a ratio table the ratios are derived from prices.
func LoadSnapshot(ctx context.Context, cfg *config.Config, logger ports.Logger) (*market.Snapshot, error) {
	switch cfg.DataSource {
	case config.SourceSQLite:
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger})
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		snapshot, err := repo.LoadSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot from %s: %w", cfg.DBPath, err)
		}
		logSnapshot(ctx, logger, snapshot, cfg.DBPath)
		return snapshot, nil

	case config.SourceCSV:
		prices, err := utils.ReadTableCSV(cfg.PriceTablePath)
		if err != nil {
			return nil, err
		}
		var ratios *market.Table
		if cfg.RatioTablePath != "" {
			if ratios, err = utils.ReadTableCSV(cfg.RatioTablePath); err != nil {
				return nil, err
			}
		}
		snapshot, err := market.NewSnapshot(prices, ratios)
		if err != nil {
			return nil, err
		}
		logSnapshot(ctx, logger, snapshot, cfg.PriceTablePath)
		return snapshot, nil

	default:
		return nil, fmt.Errorf("data source %q: %w", cfg.DataSource, ports.ErrConfigurationError)
	}
}

func logSnapshot(ctx context.Context, logger ports.Logger, snapshot *market.Snapshot, source string) {
	fields := map[string]interface{}{
		"source":      source,
		"instruments": snapshot.Prices.Len(),
		"dates":       len(snapshot.Ratios.Dates()),
	}
	if from, to, ok := snapshot.DateRange(); ok {
		fields["from"] = from.Format(domain.DateLayout)
		fields["to"] = to.Format(domain.DateLayout)
	}
	logger.Info(ctx, "Price snapshot loaded", fields)
}
