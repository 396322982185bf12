// Package geocoding превращает текстовые адреса в координаты.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

var pinCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

// Config описывает настройки клиента Nominatim.
type Config struct {
	BaseURL       string
	UserAgent     string
	Country       string
	RatePerSecond float64
	Timeout       time.Duration
	MaxAttempts   int
}

// DefaultConfig возвращает настройки публичного Nominatim: не чаще одного запроса в секунду.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://nominatim.openstreetmap.org",
		UserAgent:     "basket-optimizer/1.0",
		Country:       "India",
		RatePerSecond: 1,
		Timeout:       10 * time.Second,
		MaxAttempts:   3,
	}
}

// Nominatim ходит в геокодер OpenStreetMap по HTTP.
type Nominatim struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Entry
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("nominatim status %d: %s", e.code, e.body)
}

// NewNominatim создаёт клиент. client и logger могут быть nil.
func NewNominatim(cfg Config, client *http.Client, logger *log.Entry) *Nominatim {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaults.RatePerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = log.WithField("component", "geocoder")
	}
	return &Nominatim{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
	}
}

// Geocode ищет адрес, дописывая страну, если её нет в запросе.
// Если адрес не найден, но в нём есть шестизначный PIN-код, ищет по одному PIN-коду.
func (n *Nominatim) Geocode(ctx context.Context, query string) (domain.Coordinate, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Coordinate{}, false, nil
	}

	location, found, err := n.search(ctx, n.withCountry(query))
	if err != nil || found {
		return location, found, err
	}

	match := pinCodePattern.FindStringSubmatch(query)
	if match == nil {
		return domain.Coordinate{}, false, nil
	}
	n.logger.WithField("pincode", match[1]).Debug("falling back to pincode lookup")
	return n.search(ctx, n.withCountry(match[1]))
}

func (n *Nominatim) withCountry(query string) string {
	if n.cfg.Country == "" || strings.Contains(strings.ToLower(query), strings.ToLower(n.cfg.Country)) {
		return query
	}
	return query + ", " + n.cfg.Country
}

func (n *Nominatim) search(ctx context.Context, query string) (domain.Coordinate, bool, error) {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return domain.Coordinate{}, false, err
		}

		location, found, err := n.searchOnce(ctx, query)
		if err == nil {
			return location, found, nil
		}
		lastErr = err
		if !retryable(err) || attempt == n.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Coordinate{}, false, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return domain.Coordinate{}, false, lastErr
}

func (n *Nominatim) searchOnce(ctx context.Context, query string) (domain.Coordinate, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinate{}, false, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinate{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("parse lat %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("parse lon %q: %w", results[0].Lon, err)
	}
	return domain.Coordinate{Lat: lat, Long: lon}, true, nil
}

// retryable: сетевые ошибки, 429 и 5xx.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var _ domain.Geocoder = (*Nominatim)(nil)
