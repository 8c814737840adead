package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"competition/internal/models"
	"competition/pkg/utils"
)

// DefaultMyFXBookBaseURL - публичный API MyFXBook
const DefaultMyFXBookBaseURL = "https://www.myfxbook.com/api"

// MyFXBook читает счета через get-my-accounts.json.
// api_token хранит session, полученную при логине в MyFXBook.
type MyFXBook struct {
	baseURL string
	http    *requester
}

// NewMyFXBook создаёт адаптер MyFXBook
func NewMyFXBook(baseURL string, r *requester) *MyFXBook {
	if baseURL == "" {
		baseURL = DefaultMyFXBookBaseURL
	}
	return &MyFXBook{baseURL: strings.TrimRight(baseURL, "/"), http: r}
}

func (m *MyFXBook) Name() models.Provider {
	return models.ProviderMyFXBook
}

func (m *MyFXBook) Validate(creds models.Credentials) error {
	var errs utils.ValidationErrors
	errs.AddError("account_id", utils.ValidateAccountID(creds.AccountID))
	if strings.TrimSpace(creds.APIToken) == "" {
		errs.Add("api_token", "session token is required")
	}
	if errs.HasErrors() {
		return &ProviderError{Provider: m.Name(), Kind: KindConfiguration, Message: errs.Error(), Original: errs}
	}
	return nil
}

func (m *MyFXBook) FetchAccount(ctx context.Context, creds models.Credentials) (*models.AccountData, error) {
	if err := m.Validate(creds); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("session", strings.TrimSpace(creds.APIToken))
	q.Set("id", strings.TrimSpace(creds.AccountID))
	reqURL := m.baseURL + "/get-my-accounts.json?" + q.Encode()

	body, err := m.http.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}

	if err := m.checkEnvelope(body); err != nil {
		return nil, err
	}
	return Normalize(m.Name(), strings.TrimSpace(creds.AccountID), body)
}

// checkEnvelope обрабатывает {"error": true, "message": ...} и {"success": false}
func (m *MyFXBook) checkEnvelope(body []byte) error {
	if !gjson.ValidBytes(body) {
		// HTML и мусор разберёт Normalize
		return nil
	}
	root := gjson.ParseBytes(body)

	failed := root.Get("error").Bool()
	if s := root.Get("success"); s.Exists() && !s.Bool() {
		failed = true
	}
	if !failed {
		return nil
	}

	msg := strings.TrimSpace(root.Get("message").String())
	if msg == "" {
		msg = "request failed"
	}
	if strings.Contains(strings.ToLower(msg), "invalid session") {
		return newError(m.Name(), KindExpiredCredentials, "%s, log in again to refresh the session token", msg)
	}
	return newError(m.Name(), KindProviderRejected, "%s", msg)
}

func (m *MyFXBook) TestConnection(ctx context.Context, creds models.Credentials) models.ConnectionResult {
	return testConnection(ctx, m, creds)
}
