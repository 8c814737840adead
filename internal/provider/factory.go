package provider

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"competition/internal/models"
)

// Options - настройки фабрики адаптеров
type Options struct {
	HTTPTimeout               time.Duration
	MyFXBookBaseURL           string
	ForexFactoryBaseURL       string
	AllowForexFactoryFallback bool

	// RateLimit - запросов в секунду к одному провайдеру; 0 = без ограничения
	RateLimit float64
	RateBurst int
}

// Factory держит по одному адаптеру на провайдера.
// Все адаптеры делят пул соединений, лимитер у каждого провайдера свой.
type Factory struct {
	client   *HTTPClient
	adapters map[models.Provider]Adapter
}

// NewFactory создаёт адаптеры всех поддерживаемых провайдеров
func NewFactory(opts Options) *Factory {
	cfg := DefaultHTTPClientConfig()
	if opts.HTTPTimeout > 0 {
		cfg.TotalTimeout = opts.HTTPTimeout
	}
	client := NewHTTPClient(cfg)

	newRequester := func(p models.Provider) *requester {
		r := &requester{provider: p, client: client}
		if opts.RateLimit > 0 {
			burst := opts.RateBurst
			if burst <= 0 {
				burst = 1
			}
			r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
		}
		return r
	}

	f := &Factory{client: client, adapters: make(map[models.Provider]Adapter, len(models.AllProviders))}
	f.adapters[models.ProviderMyFXBook] = NewMyFXBook(opts.MyFXBookBaseURL, newRequester(models.ProviderMyFXBook))
	f.adapters[models.ProviderMT4] = NewMetaTrader(models.ProviderMT4, newRequester(models.ProviderMT4))
	f.adapters[models.ProviderMT5] = NewMetaTrader(models.ProviderMT5, newRequester(models.ProviderMT5))
	f.adapters[models.ProviderForexFactory] = NewForexFactory(opts.ForexFactoryBaseURL,
		opts.AllowForexFactoryFallback, newRequester(models.ProviderForexFactory))
	return f
}

// Get возвращает адаптер провайдера
func (f *Factory) Get(p models.Provider) (Adapter, error) {
	a, ok := f.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}
	return a, nil
}

// SupportedProviders - список поддерживаемых провайдеров
func (f *Factory) SupportedProviders() []models.Provider {
	out := make([]models.Provider, 0, len(f.adapters))
	for _, p := range models.AllProviders {
		if _, ok := f.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Close закрывает соединения
func (f *Factory) Close() {
	f.client.Close()
}
