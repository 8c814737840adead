package provider

import (
	"context"
	"hash/fnv"
	"net/url"
	"regexp"
	"strings"

	"competition/internal/metrics"
	"competition/internal/models"
	"competition/pkg/utils"
)

// DefaultForexFactoryBaseURL - публичные профили Forex Factory
const DefaultForexFactoryBaseURL = "https://www.forexfactory.com"

// У Forex Factory нет API, данные берутся со страницы профиля
var (
	ffBalanceRegex = regexp.MustCompile(`(?i)balance[^0-9$\-]{0,60}\$?\s*(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)
	ffReturnRegex  = regexp.MustCompile(`(?i)return[^0-9+\-]{0,60}([+\-]?[0-9]+(?:\.[0-9]+)?)\s*%`)
)

// ForexFactory читает публичный профиль трейдера.
//
// Если ни одна страница не дала баланс и allowFallback включён, FetchAccount
// возвращает детерминированные данные, сгенерированные из account_id,
// с флагом Synthetic. Каждое такое использование пишется в лог (WARN) и в метрику.
type ForexFactory struct {
	baseURL       string
	allowFallback bool
	http          *requester
}

// NewForexFactory создаёт адаптер Forex Factory
func NewForexFactory(baseURL string, allowFallback bool, r *requester) *ForexFactory {
	if baseURL == "" {
		baseURL = DefaultForexFactoryBaseURL
	}
	return &ForexFactory{baseURL: strings.TrimRight(baseURL, "/"), allowFallback: allowFallback, http: r}
}

func (f *ForexFactory) Name() models.Provider {
	return models.ProviderForexFactory
}

func (f *ForexFactory) Validate(creds models.Credentials) error {
	if err := utils.ValidateAccountID(creds.AccountID); err != nil {
		return &ProviderError{Provider: f.Name(), Kind: KindConfiguration,
			Message: "account_id: " + err.Error(), Original: err}
	}
	return nil
}

// candidateURLs - страницы профиля в порядке проверки
func (f *ForexFactory) candidateURLs(username string) []string {
	escaped := url.PathEscape(username)
	return []string{
		f.baseURL + "/" + escaped,
		f.baseURL + "/trader/" + escaped,
		f.baseURL + "/explorer.php?id=" + url.QueryEscape(username),
	}
}

func (f *ForexFactory) FetchAccount(ctx context.Context, creds models.Credentials) (*models.AccountData, error) {
	if err := f.Validate(creds); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(creds.AccountID)

	account, err := f.scrape(ctx, username)
	if err == nil {
		return account, nil
	}
	if !f.allowFallback {
		return nil, err
	}

	utils.FromContext(ctx).Warn("forex factory scrape failed, returning synthetic fallback data",
		utils.Provider(string(f.Name())),
		utils.AccountID(username),
		utils.Err(err),
	)
	metrics.RecordFallback(string(f.Name()))
	return FallbackAccount(username), nil
}

// scrape перебирает страницы и возвращает первую, где найден баланс
func (f *ForexFactory) scrape(ctx context.Context, username string) (*models.AccountData, error) {
	var lastErr error
	for _, candidate := range f.candidateURLs(username) {
		body, err := f.http.get(ctx, candidate, nil)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		account, err := parseProfile(username, string(body))
		if err != nil {
			lastErr = err
			continue
		}
		return account, nil
	}
	if lastErr == nil {
		lastErr = newError(f.Name(), KindUnreachable, "no profile page candidates")
	}
	return nil, lastErr
}

// parseProfile достаёт баланс и доходность из HTML профиля
func parseProfile(username, page string) (*models.AccountData, error) {
	m := ffBalanceRegex.FindStringSubmatch(page)
	if m == nil {
		return nil, newError(models.ProviderForexFactory, KindNoBalance, "profile page of %s has no balance", username)
	}
	balance, ok := utils.ParseAmount(m[1])
	if !ok || balance <= 0 {
		return nil, newError(models.ProviderForexFactory, KindNoBalance, "profile page of %s has no balance", username)
	}

	account := &models.AccountData{
		AccountID: username,
		Balance:   balance,
		Currency:  "USD",
		Source:    string(models.ProviderForexFactory),
	}
	if r := ffReturnRegex.FindStringSubmatch(page); r != nil {
		if gain, ok := utils.ParseAmount(strings.TrimPrefix(r[1], "+")); ok {
			account.Gain = &gain
		}
	}
	return account, nil
}

// FallbackAccount генерирует стабильные данные для account_id:
// доходность от -20% до +40% от 1000, 10-99 сделок
func FallbackAccount(accountID string) *models.AccountData {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	seed := h.Sum32()

	gain := float64(int(seed%6001)-2000) / 100
	balance := utils.Round2(utils.DefaultStartingBalance * (1 + gain/100))
	profit := utils.Round2(balance - utils.DefaultStartingBalance)
	trades := 10 + int((seed/6001)%90)

	return &models.AccountData{
		AccountID: accountID,
		Balance:   balance,
		Profit:    &profit,
		Gain:      &gain,
		Trades:    &trades,
		Currency:  "USD",
		Source:    string(models.ProviderForexFactory),
		Synthetic: true,
	}
}

// TestConnection не использует fallback: сгенерированные данные не подтверждают профиль
func (f *ForexFactory) TestConnection(ctx context.Context, creds models.Credentials) models.ConnectionResult {
	if err := f.Validate(creds); err != nil {
		return models.ConnectionResult{Success: false, Message: err.Error()}
	}

	account, err := f.scrape(ctx, strings.TrimSpace(creds.AccountID))
	if err != nil {
		msg := err.Error()
		if f.allowFallback {
			msg += " (sync would use generated fallback data)"
		}
		return models.ConnectionResult{Success: false, Message: msg}
	}
	return models.ConnectionResult{
		Success: true,
		Message: "profile " + account.AccountID + " found",
		Account: account,
	}
}
