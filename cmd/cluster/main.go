package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"shapeCluster/config"
	"shapeCluster/internal/adapters/logger"
	"shapeCluster/internal/app"
	"shapeCluster/internal/domain"
	"shapeCluster/internal/metrics"
)

var (
	classes = flag.String("classes", "", "comma-separated instrument classes (default from DEFAULT_CLASSES)")
	k       = flag.Int("k", 0, "number of clusters (default from DEFAULT_K)")
	start   = flag.String("start", "", "start date YYYY-MM-DD (default from DEFAULT_START_DATE)")
	metric  = flag.String("metric", "", "distance metric: dtw or euclidean")
	seed    = flag.Int64("seed", -1, "random seed; negative draws a fresh one")
	sweep   = flag.String("sweep", "", "k range a-b to sweep instead of a single fit, e.g. 2-9")
	members = flag.Bool("members", false, "list every member with its final return")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
	ctx := context.Background()

	snapshot, err := app.LoadSnapshot(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to load price snapshot: %v", err)
	}
	service, err := app.NewClusteringService(cfg, appLogger, metrics.New(), snapshot)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize clustering service: %v", err)
	}

	req, err := buildRequest(cfg)
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	if *sweep != "" {
		var kMin, kMax int
		if _, err := fmt.Sscanf(*sweep, "%d-%d", &kMin, &kMax); err != nil {
			log.Fatalf("Invalid -sweep %q: want a-b", *sweep)
		}
		report, err := service.Sweep(ctx, req, kMin, kMax)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		printSweep(report)
		return
	}

	res, err := service.Cluster(ctx, req)
	if err != nil {
		log.Fatalf("Clustering failed: %v", err)
	}
	printResult(res)
}

func buildRequest(cfg *config.Config) (app.Request, error) {
	req := app.Request{K: *k, Metric: *metric, Classes: cfg.DefaultClasses}
	if *classes != "" {
		req.Classes = strings.Split(*classes, ",")
	}
	if *start != "" {
		d, err := domain.ParseDate(*start)
		if err != nil {
			return req, fmt.Errorf("start date: %w", err)
		}
		req.StartDate = d
	}
	if *seed >= 0 {
		s := uint64(*seed)
		req.Seed = &s
	}
	return req, nil
}

func printResult(res *app.Result) {
	fmt.Printf("Run %s: k=%d metric=%s start=%s seed=%d inertia=%.6f iterations=%d converged=%t\n\n",
		res.RunID, res.Model.K, res.Model.Metric, res.Start.Format(domain.DateLayout),
		res.Model.Seed, res.Model.Inertia, res.Model.Iterations, res.Model.Converged)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Cluster\tSize\tShare%\tCentroidRet%\tCentroidMaxDD%\tMeanFinalRet%\tBest\tWorst\t")
	for _, c := range res.Summary.Clusters {
		fmt.Fprintf(w, "%d\t%d\t%.1f\t%.2f\t%.2f\t%.2f\t%s\t%s\t\n",
			c.Label, c.Size, c.Share*100, c.CentroidReturn*100, c.CentroidMaxDrawdown*100,
			c.MeanFinalReturn*100, c.BestCode, c.WorstCode)
	}
	w.Flush()

	if *members {
		fmt.Println("\n## Members")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
		fmt.Fprintln(w, "Cluster\tCode\tFinalRet%\t")
		for _, o := range res.Overlays {
			for _, m := range o.Members {
				fmt.Fprintf(w, "%d\t%s\t%.2f\t\n", o.Label, m.Code, (m.Values[len(m.Values)-1]-1)*100)
			}
		}
		w.Flush()
	}

	if len(res.Exclusions) > 0 {
		fmt.Printf("\n%d instruments excluded for incomplete history:\n", len(res.Exclusions))
		for _, e := range res.Exclusions {
			fmt.Printf("  %s (%s %s)\n", e.ID.Code, e.Reason, formatDate(e.Date))
		}
	}
}

func printSweep(report *app.SweepReport) {
	fmt.Printf("Sweep %s: %d series from %s, elbow at k=%d\n\n",
		report.RunID, report.Series, report.Start.Format(domain.DateLayout), report.Elbow)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "K\tInertia\tIterations\tConverged\tSizes\t")
	for _, r := range report.Results {
		fmt.Fprintf(w, "%d\t%.6f\t%d\t%t\t%v\t\n", r.K, r.Inertia, r.Iterations, r.Converged, r.Sizes)
	}
	w.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(domain.DateLayout)
}
