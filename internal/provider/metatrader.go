package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"competition/internal/models"
	"competition/pkg/utils"
)

// MetaTrader - bridge API брокера для MT4 и MT5.
// Оба терминала отдают одинаковый контракт: GET {endpoint}/account/{id} с Bearer токеном.
type MetaTrader struct {
	platform models.Provider
	http     *requester
}

// NewMetaTrader создаёт адаптер для MT4 или MT5
func NewMetaTrader(platform models.Provider, r *requester) *MetaTrader {
	return &MetaTrader{platform: platform, http: r}
}

func (m *MetaTrader) Name() models.Provider {
	return m.platform
}

func (m *MetaTrader) Validate(creds models.Credentials) error {
	var errs utils.ValidationErrors
	errs.AddError("account_id", utils.ValidateAccountID(creds.AccountID))
	errs.AddError("api_token", utils.ValidateAPIToken(creds.APIToken))

	if err := utils.ValidateEndpointURL(creds.ServerEndpoint); err != nil {
		// страница админки вместо API - отдельное понятное сообщение
		if errors.Is(err, utils.ErrConfigurationPageURL) {
			return &ProviderError{Provider: m.platform, Kind: KindConfiguration,
				Message: err.Error() + ", paste the broker API URL instead", Original: err}
		}
		errs.AddError("server_endpoint", err)
	}

	if errs.HasErrors() {
		return &ProviderError{Provider: m.platform, Kind: KindConfiguration, Message: errs.Error(), Original: errs}
	}
	return nil
}

func (m *MetaTrader) FetchAccount(ctx context.Context, creds models.Credentials) (*models.AccountData, error) {
	if err := m.Validate(creds); err != nil {
		return nil, err
	}

	accountID := strings.TrimSpace(creds.AccountID)
	reqURL := strings.TrimRight(strings.TrimSpace(creds.ServerEndpoint), "/") + "/account/" + url.PathEscape(accountID)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(creds.APIToken))
	header.Set("Accept", "application/json")

	body, err := m.http.get(ctx, reqURL, header)
	if err != nil {
		return nil, err
	}
	return Normalize(m.platform, accountID, body)
}

func (m *MetaTrader) TestConnection(ctx context.Context, creds models.Credentials) models.ConnectionResult {
	return testConnection(ctx, m, creds)
}
