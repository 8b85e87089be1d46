package inference

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/metrics"
	"github.com/fakenews-detector/backend/pkg/circuitbreaker"
	"github.com/fakenews-detector/backend/pkg/logger"
	"github.com/fakenews-detector/backend/pkg/utils"
)

// Cache stores predictions by key.
type Cache interface {
	GetPrediction(ctx context.Context, key string, v any) (bool, error)
	SetPrediction(ctx context.Context, key string, v any, ttl time.Duration) error
}

const cacheType = "prediction"

// Service answers prediction requests, consulting an optional cache first.
// Cache failures never fail a request.
type Service struct {
	model   *Context
	cache   Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

type ServiceOption func(*Service)

func WithCache(cache Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.ttl = ttl
	}
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) ServiceOption {
	return func(s *Service) {
		s.breaker = cb
	}
}

func NewService(c *Context, opts ...ServiceOption) *Service {
	s := &Service{model: c, ttl: time.Hour}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil && s.breaker == nil {
		s.breaker = circuitbreaker.NewCircuitBreaker("prediction-cache", circuitbreaker.Config{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			Logger:           logger.GetLogger(),
			OnStateChange: func(name string, _, to circuitbreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
	}
	return s
}

func (s *Service) Context() *Context {
	return s.model
}

// Predict classifies texts, serving cached predictions where it can. A
// cancelled ctx fails before any work is done.
func (s *Service) Predict(ctx context.Context, texts []string) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	out := make([]Prediction, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if p, ok := s.lookup(ctx, text); ok {
			out[i] = p
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 || len(texts) == 0 {
		preds, err := s.model.Predict(missTexts)
		if err != nil {
			return nil, err
		}
		for k, p := range preds {
			out[missIdx[k]] = p
			s.store(ctx, p)
		}
	}

	for _, p := range out {
		metrics.PredictionsTotal.WithLabelValues(p.Category).Inc()
	}
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	return out, nil
}

func (s *Service) key(text string) string {
	return s.model.Version() + ":" + utils.Fingerprint(text)
}

func (s *Service) lookup(ctx context.Context, text string) (Prediction, bool) {
	if s.cache == nil {
		return Prediction{}, false
	}

	var p Prediction
	var hit bool
	err := s.breaker.Execute(ctx, func() error {
		var err error
		hit, err = s.cache.GetPrediction(ctx, s.key(text), &p)
		return err
	})
	if err != nil {
		logger.Debug("Prediction cache unavailable", zap.Error(err))
		hit = false
	}

	if !hit {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return Prediction{}, false
	}
	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	p.Text = text
	p.Cached = true
	return p, true
}

func (s *Service) store(ctx context.Context, p Prediction) {
	if s.cache == nil {
		return
	}
	err := s.breaker.Execute(ctx, func() error {
		return s.cache.SetPrediction(ctx, s.key(p.Text), p, s.ttl)
	})
	if err != nil {
		logger.Debug("Failed to cache prediction", zap.Error(err))
	}
}
