package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shapeCluster/internal/domain"
	"shapeCluster/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	dailyInterval = "1d"
	maxLimit      = 1500
)

// Client implements ports.HistorySource using the go-binance futures client.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

var _ ports.HistorySource = (*Client)(nil)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client: %w", ports.ErrConfigurationError)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		// Klines are public; keys are only needed for signed endpoints.
		cfg.Logger.Debug(context.Background(), "APIKey or SecretKey is empty, using public endpoints only")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1120, -1121, -1127, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrExchangeFailure
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeFailure, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks connectivity to the futures API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// GetDailyCloses fetches the daily closing prices of id.Code between start and end, paging
// through the klines endpoint. Each close is dated by the UTC day of its candle.
func (c *Client) GetDailyCloses(ctx context.Context, id domain.InstrumentID, start, end time.Time) (*domain.PriceSeries, error) {
	op := "GetDailyCloses"
	series := &domain.PriceSeries{ID: id, Points: make([]domain.PricePoint, 0)}
	from := start

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(id.Code).
			Interval(dailyInterval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			point, err := translateDailyClose(bk)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate %s kline: %w", id.Code, err), op)
			}
			series.Points = appendPoint(series.Points, point)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < maxLimit {
			break
		}
	}

	c.logger.Debug(ctx, "Daily closes fetched", map[string]interface{}{"instrument": id.String(), "points": len(series.Points)})
	return series, nil
}

// appendPoint keeps dates strictly increasing when pages overlap.
func appendPoint(points []domain.PricePoint, p domain.PricePoint) []domain.PricePoint {
	if n := len(points); n > 0 && !p.Date.After(points[n-1].Date) {
		return points
	}
	return append(points, p)
}

func translateDailyClose(bk *futures.Kline) (domain.PricePoint, error) {
	if bk == nil {
		return domain.PricePoint{}, errors.New("received nil historical kline")
	}
	cls, err := decimal.NewFromString(bk.Close)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	return domain.PricePoint{
		Date:  domain.TruncateDay(time.UnixMilli(bk.OpenTime)),
		Price: cls.InexactFloat64(),
	}, nil
}
