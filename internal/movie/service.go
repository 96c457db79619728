package movie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/moviefav/internal/metrics"
	"github.com/hitoshi/moviefav/internal/model"
)

// Provider は映画情報の取得元。*Clientが実装する。
type Provider interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
	Details(ctx context.Context, id string) (json.RawMessage, error)
}

// Service は入力検証、キャッシュ参照、映画APIの呼び出しをまとめる。
type Service struct {
	provider Provider
	cache    Cache // nilの場合はキャッシュしない
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。cache、collector、loggerはnilでもよい。
func NewService(provider Provider, cache Cache, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		metrics:  collector,
		logger:   logger,
	}
}

// Search はタイトル検索の結果を映画APIのJSONのまま返す。
func (s *Service) Search(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewMissingFieldError("q")
	}
	return s.lookup(ctx, KindSearch, query, s.provider.Search)
}

// Details は映画IDに対応する詳細を映画APIのJSONのまま返す。
func (s *Service) Details(ctx context.Context, id string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.NewMissingFieldError("id")
	}
	return s.lookup(ctx, KindDetails, id, s.provider.Details)
}

func (s *Service) lookup(
	ctx context.Context,
	kind Kind,
	arg string,
	fetch func(context.Context, string) (json.RawMessage, error),
) (json.RawMessage, error) {
	key := cacheKey(kind, arg)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			// キャッシュ障害時は映画APIへフォールバックする
			s.logger.Warn("movie cache get failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		}
		if err == nil {
			s.metrics.RecordCacheLookup(string(kind), ok)
		}
		if ok {
			return json.RawMessage(cached), nil
		}
	}

	start := time.Now()
	body, err := fetch(ctx, arg)
	s.metrics.RecordProviderLookup(string(kind), err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrProviderFailed) {
			return nil, model.NewProviderFailedError()
		}
		return nil, fmt.Errorf("movie %s lookup failed: %w", kind, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body); err != nil {
			s.logger.Warn("movie cache set failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		}
	}

	return body, nil
}
