package models

// AccountData - нормализованные данные счёта от провайдера
type AccountData struct {
	AccountID string   `json:"account_id"`
	Balance   float64  `json:"balance"`
	Equity    *float64 `json:"equity,omitempty"`
	Profit    *float64 `json:"profit,omitempty"`
	Gain      *float64 `json:"gain,omitempty"` // доходность в %, если провайдер её отдаёт
	Trades    *int     `json:"trades,omitempty"`
	Currency  string   `json:"currency"`
	Source    string   `json:"source"`
	// Synthetic - данные сгенерированы, а не получены от провайдера
	Synthetic bool `json:"synthetic,omitempty"`
}

// Credentials - расшифрованные поля интеграции для адаптера
type Credentials struct {
	AccountID      string
	APIToken       string
	Password       string
	ServerEndpoint string
}

// CredentialsOf собирает Credentials из интеграции с уже расшифрованными секретами
func CredentialsOf(i *Integration, apiToken, password string) Credentials {
	return Credentials{
		AccountID:      i.AccountID,
		APIToken:       apiToken,
		Password:       password,
		ServerEndpoint: i.ServerEndpoint,
	}
}
