package main

import (
	"context"
	"flag"
	"log"

	"shapeCluster/config"
	"shapeCluster/internal/adapters/logger"
	"shapeCluster/internal/adapters/sqlite"
	"shapeCluster/internal/utils"
)

var (
	prices = flag.String("prices", "", "wide price CSV (default PRICE_TABLE_PATH)")
	ratios = flag.String("ratios", "", "wide ratio CSV (default RATIO_TABLE_PATH, optional)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
	ctx := context.Background()

	pricePath, ratioPath := *prices, *ratios
	if pricePath == "" {
		pricePath = cfg.PriceTablePath
	}
	if ratioPath == "" {
		ratioPath = cfg.RatioTablePath
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	priceTable, err := utils.ReadTableCSV(pricePath)
	if err != nil {
		log.Fatalf("Error reading prices: %v", err)
	}
	if err := repo.SavePrices(ctx, priceTable.Series()); err != nil {
		log.Fatalf("Error saving prices: %v", err)
	}
	appLogger.Info(ctx, "Prices imported", map[string]interface{}{"file": pricePath, "instruments": priceTable.Len()})

	if ratioPath == "" {
		appLogger.Info(ctx, "No ratio table given; ratios will be derived from prices on load")
		return
	}
	ratioTable, err := utils.ReadTableCSV(ratioPath)
	if err != nil {
		log.Fatalf("Error reading ratios: %v", err)
	}
	if err := repo.SaveRatios(ctx, ratioTable.Series()); err != nil {
		log.Fatalf("Error saving ratios: %v", err)
	}
	appLogger.Info(ctx, "Ratios imported", map[string]interface{}{"file": ratioPath, "instruments": ratioTable.Len()})
}
