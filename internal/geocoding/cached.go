package geocoding

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// Исходы обращения к геокодеру для метрик.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder принимает исход обращения к геокодеру.
type Recorder interface {
	RecordGeocode(outcome string)
}

// Cached кэширует результаты другого геокодера. Ошибки кэша не прерывают запрос.
type Cached struct {
	next     domain.Geocoder
	cache    domain.GeocodeCache
	recorder Recorder
	logger   *log.Entry
}

// NewCached оборачивает geocoder кэшем. recorder может быть nil.
func NewCached(next domain.Geocoder, cache domain.GeocodeCache, recorder Recorder, logger *log.Entry) *Cached {
	if logger == nil {
		logger = log.WithField("component", "geocode-cache")
	}
	return &Cached{next: next, cache: cache, recorder: recorder, logger: logger}
}

// Geocode сначала смотрит в кэш, затем обращается к геокодеру и сохраняет найденное.
func (c *Cached) Geocode(ctx context.Context, query string) (domain.Coordinate, bool, error) {
	key := CacheKey(query)
	if key == "" {
		return domain.Coordinate{}, false, nil
	}

	location, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("geocode cache read failed")
	} else if ok {
		c.record(OutcomeHit)
		return location, true, nil
	}

	location, found, err := c.next.Geocode(ctx, query)
	if err != nil {
		c.record(OutcomeError)
		return domain.Coordinate{}, false, err
	}
	if !found {
		c.record(OutcomeNotFound)
		return domain.Coordinate{}, false, nil
	}
	c.record(OutcomeMiss)

	if err := c.cache.Set(ctx, key, location); err != nil {
		c.logger.WithError(err).Warn("geocode cache write failed")
	}
	return location, true, nil
}

func (c *Cached) record(outcome string) {
	if c.recorder != nil {
		c.recorder.RecordGeocode(outcome)
	}
}

// CacheKey нормализует запрос: нижний регистр, одиночные пробелы.
func CacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

var _ domain.Geocoder = (*Cached)(nil)
