package provider

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"competition/internal/models"
)

func TestMetaTrader_FetchAccount(t *testing.T) {
	var gotPath, gotAuth, gotAccept string
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		jsonHandler(http.StatusOK, `{"account":{"balance":"1234.50","equity":"1236.00","currency":"USD"}}`)(w, r)
	})

	mt := NewMetaTrader(models.ProviderMT5, testRequester(models.ProviderMT5))
	account, err := mt.FetchAccount(context.Background(), models.Credentials{
		AccountID:      "50123456",
		APIToken:       "token-1234567890",
		ServerEndpoint: srv.URL + "/api/",
	})

	require.NoError(t, err)
	assert.Equal(t, 1234.50, account.Balance)
	assert.Equal(t, "50123456", account.AccountID)
	assert.Equal(t, "/api/account/50123456", gotPath)
	assert.Equal(t, "Bearer token-1234567890", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestMetaTrader_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"unauthorized"}`, ErrExpiredCredentials},
		{"forbidden", http.StatusForbidden, ``, ErrExpiredCredentials},
		{"not found", http.StatusNotFound, `not found`, ErrWrongEndpoint},
		{"bad gateway", http.StatusBadGateway, ``, ErrUnreachable},
		{"bad request", http.StatusBadRequest, `{}`, ErrProviderRejected},
		{"html 200", http.StatusOK, `<html><body>Sign in</body></html>`, ErrWrongEndpoint},
		{"html 403", http.StatusForbidden, `<!DOCTYPE html><html>Forbidden</html>`, ErrWrongEndpoint},
		{"html 401", http.StatusUnauthorized, "\n  <html>Login</html>", ErrWrongEndpoint},
		{"html 500", http.StatusInternalServerError, `<!DOCTYPE html><html>Error</html>`, ErrWrongEndpoint},
		{"html 502 from proxy", http.StatusBadGateway, `<html>Bad Gateway</html>`, ErrUnreachable},
		{"html 504 from proxy", http.StatusGatewayTimeout, `<html>Gateway Timeout</html>`, ErrUnreachable},
		{"zero balance", http.StatusOK, `{"account":{"balance":0}}`, ErrNoBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := countingServer(t, jsonHandler(tt.status, tt.body))
			mt := NewMetaTrader(models.ProviderMT4, testRequester(models.ProviderMT4))

			account, err := mt.FetchAccount(context.Background(), models.Credentials{
				AccountID: "1001", APIToken: "token-1234567890", ServerEndpoint: srv.URL,
			})
			assert.Nil(t, account)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var perr *ProviderError
			if assert.True(t, errors.As(err, &perr)) && tt.status != http.StatusOK {
				assert.Equal(t, tt.status, perr.StatusCode)
			}
		})
	}
}

func TestMetaTrader_Unreachable(t *testing.T) {
	srv, _ := countingServer(t, jsonHandler(http.StatusOK, `{}`))
	endpoint := srv.URL
	srv.Close()

	mt := NewMetaTrader(models.ProviderMT5, testRequester(models.ProviderMT5))
	_, err := mt.FetchAccount(context.Background(), models.Credentials{
		AccountID: "1", APIToken: "token-1234567890", ServerEndpoint: endpoint,
	})
	assert.True(t, errors.Is(err, ErrUnreachable), "got %v", err)
}

func TestMetaTrader_Validate(t *testing.T) {
	mt := NewMetaTrader(models.ProviderMT5, testRequester(models.ProviderMT5))

	tests := []struct {
		name  string
		creds models.Credentials
		field string
	}{
		{"missing account", models.Credentials{APIToken: "token-1234567890", ServerEndpoint: "https://x.com"}, "account_id"},
		{"missing token", models.Credentials{AccountID: "1", ServerEndpoint: "https://x.com"}, "api_token"},
		{"missing endpoint", models.Credentials{AccountID: "1", APIToken: "token-1234567890"}, "server_endpoint"},
		{"relative endpoint", models.Credentials{AccountID: "1", APIToken: "token-1234567890", ServerEndpoint: "/api"}, "server_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mt.Validate(tt.creds)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

// Адрес страницы настройки креденшелов отклоняется без обращения к сети
func TestMetaTrader_TestConnectionConfigurationPage(t *testing.T) {
	srv, calls := countingServer(t, jsonHandler(http.StatusOK, `{"account":{"balance":1}}`))

	mt := NewMetaTrader(models.ProviderMT5, testRequester(models.ProviderMT5))
	result := mt.TestConnection(context.Background(), models.Credentials{
		AccountID:      "50123456",
		APIToken:       "token-1234567890",
		ServerEndpoint: srv.URL + "/configure-trading-account-credentials/12",
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "configuration page")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestMetaTrader_TestConnectionSuccess(t *testing.T) {
	srv, _ := countingServer(t, jsonHandler(http.StatusOK, `{"balance":"5000","currency":"USD"}`))

	mt := NewMetaTrader(models.ProviderMT5, testRequester(models.ProviderMT5))
	result := mt.TestConnection(context.Background(), models.Credentials{
		AccountID: "7", APIToken: "token-1234567890", ServerEndpoint: srv.URL,
	})

	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "5000.00")
	require.NotNil(t, result.Account)
	assert.Equal(t, 5000.0, result.Account.Balance)
}
