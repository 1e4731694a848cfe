package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/market"
	"shapeCluster/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.SnapshotRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var _ ports.SnapshotRepository = (*Repository)(nil)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// observation tables
const (
	tablePrices = "prices"
	tableRatios = "ratios"
)

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository: %w", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/shape_cluster.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Instrument ids are assigned on first insert, so ordering by id reproduces table row order.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS instruments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		class TEXT NOT NULL,
		code TEXT NOT NULL,
		UNIQUE (class, code)
	);

	CREATE TABLE IF NOT EXISTS prices (
		instrument_id INTEGER NOT NULL REFERENCES instruments (id),
		date TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (instrument_id, date)
	);

	CREATE TABLE IF NOT EXISTS ratios (
		instrument_id INTEGER NOT NULL REFERENCES instruments (id),
		date TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (instrument_id, date)
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SavePrices upserts raw price observations.
func (r *Repository) SavePrices(ctx context.Context, series []*domain.PriceSeries) error {
	return r.save(ctx, tablePrices, series)
}

// SaveRatios upserts period ratio observations.
func (r *Repository) SaveRatios(ctx context.Context, series []*domain.PriceSeries) error {
	return r.save(ctx, tableRatios, series)
}

// LoadPrices returns every stored price series in instrument insertion order.
func (r *Repository) LoadPrices(ctx context.Context) ([]*domain.PriceSeries, error) {
	return r.load(ctx, tablePrices)
}

// LoadRatios returns every stored ratio series in instrument insertion order.
func (r *Repository) LoadRatios(ctx context.Context) ([]*domain.PriceSeries, error) {
	return r.load(ctx, tableRatios)
}

// LoadSnapshot rebuilds both tables. Without stored ratios they are derived from prices.
func (r *Repository) LoadSnapshot(ctx context.Context) (*market.Snapshot, error) {
	priceSeries, err := r.LoadPrices(ctx)
	if err != nil {
		return nil, err
	}
	if len(priceSeries) == 0 {
		return nil, fmt.Errorf("no stored prices: %w", ports.ErrNotFound)
	}
	prices, err := market.NewTable(priceSeries)
	if err != nil {
		return nil, err
	}

	ratioSeries, err := r.LoadRatios(ctx)
	if err != nil {
		return nil, err
	}
	var ratios *market.Table
	if len(ratioSeries) > 0 {
		if ratios, err = market.NewTable(ratioSeries); err != nil {
			return nil, err
		}
	} else {
		r.logger.Info(ctx, "No stored ratios, deriving from prices")
	}
	return market.NewSnapshot(prices, ratios)
}

func (r *Repository) save(ctx context.Context, table string, series []*domain.PriceSeries) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w: %w", table, ports.ErrDBConnection, err)
	}
	defer tx.Rollback() // no-op after Commit

	upsert := fmt.Sprintf(`
	INSERT INTO %s (instrument_id, date, value) VALUES (?, ?, ?)
	ON CONFLICT (instrument_id, date) DO UPDATE SET value = excluded.value`, table)
	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("failed to prepare %s upsert: %w: %w", table, ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	points := 0
	for _, s := range series {
		instrumentID, err := instrumentRowID(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		for _, p := range s.Points {
			if _, err := stmt.ExecContext(ctx, instrumentID, p.Date.Format(domain.DateLayout), p.Price); err != nil {
				return fmt.Errorf("failed to upsert %s for %s on %s: %w: %w",
					table, s.ID, p.Date.Format(domain.DateLayout), ports.ErrQueryFailed, err)
			}
			points++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w: %w", table, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Series saved", map[string]interface{}{"table": table, "series": len(series), "points": points})
	return nil
}

// instrumentRowID returns the row id of id, inserting it on first sight.
func instrumentRowID(ctx context.Context, tx *sql.Tx, id domain.InstrumentID) (int64, error) {
	const insert = `INSERT INTO instruments (class, code) VALUES (?, ?) ON CONFLICT (class, code) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, id.Class, id.Code); err != nil {
		return 0, fmt.Errorf("failed to insert instrument %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	var rowID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM instruments WHERE class = ? AND code = ?`, id.Class, id.Code).Scan(&rowID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up instrument %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return rowID, nil
}

func (r *Repository) load(ctx context.Context, table string) ([]*domain.PriceSeries, error) {
	query := fmt.Sprintf(`
	SELECT i.class, i.code, o.date, o.value
	FROM %s o
	JOIN instruments i ON i.id = o.instrument_id
	ORDER BY i.id, o.date`, table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w: %w", table, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	series := make([]*domain.PriceSeries, 0)
	var current *domain.PriceSeries
	for rows.Next() {
		var (
			id    domain.InstrumentID
			date  string
			value float64
		)
		if err := rows.Scan(&id.Class, &id.Code, &date, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		day, err := domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored %s date %q for %s: %w: %w", table, date, id, ports.ErrTableFormat, err)
		}
		if current == nil || current.ID != id {
			current = &domain.PriceSeries{ID: id}
			series = append(series, current)
		}
		current.Points = append(current.Points, domain.PricePoint{Date: day, Price: value})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}
	return series, nil
}
