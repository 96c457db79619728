// Package movie は外部映画データベース（OMDb互換API）への問い合わせを中継する。
// レスポンスJSONは再エンコードせず、そのままクライアントに返す。
package movie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// DefaultBaseURL はOMDb APIのエンドポイント。
const DefaultBaseURL = "https://www.omdbapi.com/"

// defaultMaxResponseSize はレスポンスボディの既定の上限（1MiB）。
const defaultMaxResponseSize int64 = 1 << 20

// ErrProviderFailed は映画APIの呼び出し失敗を表す。
// 通信エラー、2xx以外のステータス、不正なJSON、サイズ超過のいずれもこのエラーにまとめる。
var ErrProviderFailed = errors.New("movie provider request failed")

// Kind は問い合わせの種類。メトリクスとキャッシュキーに使用する。
type Kind string

const (
	KindSearch  Kind = "search"
	KindDetails Kind = "details"
)

// ClientConfig は映画APIクライアントの設定。
type ClientConfig struct {
	BaseURL         string
	APIKey          string
	MaxResponseSize int64
}

// Client はOMDb互換APIのクライアント。リトライは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	maxSize    int64
}

// NewClient はClientを生成する。httpClientのタイムアウトが呼び出しの上限時間となる。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxSize := cfg.MaxResponseSize
	if maxSize <= 0 {
		maxSize = defaultMaxResponseSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		maxSize:    maxSize,
	}
}

// Search はタイトルで映画を検索する（?s=）。
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	return c.lookup(ctx, KindSearch, "s", query)
}

// Details は映画IDで詳細を取得する（?i=）。
func (c *Client) Details(ctx context.Context, id string) (json.RawMessage, error) {
	return c.lookup(ctx, KindDetails, "i", id)
}

func (c *Client) lookup(ctx context.Context, kind Kind, param, value string) (json.RawMessage, error) {
	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider base URL: %w", err)
	}
	q := reqURL.Query()
	q.Set(param, value)
	q.Set("apikey", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "moviefav/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// URLにAPIキーが含まれるため、エラー文字列はそのまま出力しない
		c.logger.Error("movie provider request failed",
			slog.String("kind", string(kind)),
			slog.String("error", redactError(err)),
		)
		return nil, fmt.Errorf("%w: %s", ErrProviderFailed, redactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("movie provider returned error status",
			slog.String("kind", string(kind)),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrProviderFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %s", ErrProviderFailed, redactError(err))
	}
	if int64(len(body)) > c.maxSize {
		c.logger.Error("movie provider response too large",
			slog.String("kind", string(kind)),
			slog.Int64("max_bytes", c.maxSize),
		)
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrProviderFailed, c.maxSize)
	}
	if !json.Valid(body) {
		c.logger.Error("movie provider returned invalid JSON", slog.String("kind", string(kind)))
		return nil, fmt.Errorf("%w: invalid JSON body", ErrProviderFailed)
	}

	return json.RawMessage(body), nil
}

// redactError は*url.Errorからリクエスト先URLを除いたメッセージを返す。
func redactError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Op + ": " + urlErr.Err.Error()
	}
	return err.Error()
}
