package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"competition/internal/models"
	"competition/pkg/utils"
)

// HTTPClientConfig - настройки HTTP клиента для провайдеров
type HTTPClientConfig struct {
	ConnectTimeout      time.Duration // TCP connect (default: 5s)
	TotalTimeout        time.Duration // весь запрос, включая чтение тела (default: 15s)
	TLSHandshakeTimeout time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	UserAgent           string
	// MaxBodySize - ограничение на размер ответа
	MaxBodySize int64
}

// DefaultHTTPClientConfig возвращает конфигурацию по умолчанию
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout:      5 * time.Second,
		TotalTimeout:        15 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		UserAgent:           "competition-sync/1.0",
		MaxBodySize:         2 << 20,
	}
}

// HTTPClient - общий пул соединений для всех адаптеров
type HTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewHTTPClient создаёт клиент с заданной конфигурацией
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	def := DefaultHTTPClientConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.TotalTimeout <= 0 {
		config.TotalTimeout = def.TotalTimeout
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = def.MaxBodySize
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}

	dialer := &net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPClient{
		client: &http.Client{Transport: transport, Timeout: config.TotalTimeout},
		config: config,
	}
}

// Close закрывает idle соединения при graceful shutdown
func (hc *HTTPClient) Close() {
	if transport, ok := hc.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// requester выполняет GET от имени одного провайдера и классифицирует ответ
type requester struct {
	provider models.Provider
	client   *HTTPClient
	limiter  *rate.Limiter // nil = без ограничения
}

// get возвращает тело ответа 2xx или *ProviderError
func (r *requester) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: r.provider, Kind: KindUnreachable,
				Message: "request not sent: " + err.Error(), Original: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: r.provider, Kind: KindConfiguration,
			Message: "invalid request URL: " + err.Error(), Original: err}
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", r.client.config.UserAgent)

	start := time.Now()
	resp, err := r.client.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: r.provider, Kind: KindUnreachable,
			Message: "service unreachable: " + err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.client.config.MaxBodySize))
	if err != nil {
		return nil, &ProviderError{Provider: r.provider, Kind: KindUnreachable, StatusCode: resp.StatusCode,
			Message: "failed to read response: " + err.Error(), Original: err}
	}

	utils.FromContext(ctx).Debug("provider response",
		utils.Provider(string(r.provider)),
		utils.Int("status_code", resp.StatusCode),
		utils.Int("body_size", len(body)),
		utils.Latency(time.Since(start)),
	)

	if perr := classifyStatus(r.provider, resp.StatusCode, body); perr != nil {
		return nil, perr
	}
	return body, nil
}

// isGatewayError - ошибки прокси перед рабочим API; их HTML страница не означает неверный адрес
func isGatewayError(code int) bool {
	return code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

// classifyStatus переводит HTTP статус в класс ошибки.
// HTML страница с ошибкой (кроме 502-504) означает, что endpoint указывает не на API.
func classifyStatus(p models.Provider, code int, body []byte) *ProviderError {
	trimmed := bytes.TrimSpace(body)
	switch {
	case code >= 200 && code < 300:
		return nil
	case len(trimmed) > 0 && trimmed[0] == '<' && !isGatewayError(code):
		return &ProviderError{Provider: p, Kind: KindWrongEndpoint, StatusCode: code,
			Message: fmt.Sprintf("endpoint returned an HTML page (HTTP %d), check the server endpoint URL", code)}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &ProviderError{Provider: p, Kind: KindExpiredCredentials, StatusCode: code,
			Message: fmt.Sprintf("credentials rejected (HTTP %d), the API token may be expired", code)}
	case code == http.StatusNotFound:
		return &ProviderError{Provider: p, Kind: KindWrongEndpoint, StatusCode: code,
			Message: "endpoint not found (HTTP 404), check the server endpoint URL"}
	case code >= 500:
		return &ProviderError{Provider: p, Kind: KindUnreachable, StatusCode: code,
			Message: fmt.Sprintf("service unavailable (HTTP %d)", code)}
	default:
		return &ProviderError{Provider: p, Kind: KindProviderRejected, StatusCode: code,
			Message: fmt.Sprintf("request rejected (HTTP %d)", code)}
	}
}
