package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shapeCluster/config"
	"shapeCluster/internal/adapters/binanceclient"
	"shapeCluster/internal/adapters/logger"
	"shapeCluster/internal/adapters/sqlite"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"
	"shapeCluster/internal/utils"
)

var (
	symbols = flag.String("symbols", "BTCUSDT,ETHUSDT,BNBUSDT,SOLUSDT,XRPUSDT", "comma-separated futures symbols")
	class   = flag.String("class", "PERP", "instrument class recorded for every symbol")
	days    = flag.Int("days", 365, "days of history to fetch")
	out     = flag.String("out", "", "output CSV (default data/<class>_daily_<from>_to_<to>.csv)")
	toDB    = flag.Bool("db", false, "also upsert the closes into DB_PATH")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 4. Download
	end := domain.TruncateDay(time.Now())
	start := end.AddDate(0, 0, -*days)
	series, err := fetchAll(ctx, binanceClient, appLogger, parseSymbols(*symbols, *class), start, end)
	if err != nil {
		log.Fatalf("Error fetching daily closes: %v", err)
	}

	// 5. Persist
	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/%s_daily_%s_to_%s.csv", *class, start.Format("20060102"), end.Format("20060102"))
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		log.Fatalf("Error creating output directory: %v", err)
	}
	if err := utils.WriteSeriesCSV(series, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})

	if *toDB {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
		}
		defer repo.Close()
		if err := repo.SavePrices(ctx, series); err != nil {
			log.Fatalf("Error saving prices: %v", err)
		}
		appLogger.Info(ctx, "Prices upserted", map[string]interface{}{"db": cfg.DBPath, "instruments": len(series)})
	}
}

func parseSymbols(list, class string) []domain.InstrumentID {
	ids := make([]domain.InstrumentID, 0)
	for _, symbol := range strings.Split(list, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		ids = append(ids, domain.InstrumentID{Class: class, Code: symbol})
	}
	return ids
}

// fetchAll downloads every instrument in order and stops at the first failure.
func fetchAll(ctx context.Context, src ports.HistorySource, logger ports.Logger, ids []domain.InstrumentID, start, end time.Time) ([]*domain.PriceSeries, error) {
	if err := src.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	series := make([]*domain.PriceSeries, 0, len(ids))
	for _, id := range ids {
		s, err := src.GetDailyCloses(ctx, id, start, end)
		if err != nil {
			logger.Error(ctx, err, "Error fetching daily closes", map[string]interface{}{"symbol": id.Code})
			return nil, fmt.Errorf("%s: %w", id.Code, err)
		}
		if s.Len() == 0 {
			logger.Warn(ctx, "No closes returned; skipping", map[string]interface{}{"symbol": id.Code})
			continue
		}
		logger.Info(ctx, "Fetched daily closes", map[string]interface{}{"symbol": id.Code, "count": s.Len()})
		series = append(series, s)
	}
	return series, nil
}
