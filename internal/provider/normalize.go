package provider

import (
	"bytes"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"competition/internal/models"
	"competition/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PayloadShape - известные формы ответа с данными счёта
type PayloadShape int

const (
	ShapeUnknown PayloadShape = iota
	ShapeWrapped              // {"account": {...}}
	ShapeFlat                 // {"balance": ..., ...}
	ShapeList                 // {"accounts": [{...}, ...]}
	ShapeData                 // {"data": {...}} или {"data": {"account": {...}}}
)

func (s PayloadShape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeFlat:
		return "flat"
	case ShapeList:
		return "list"
	case ShapeData:
		return "data"
	}
	return "unknown"
}

// DetectShape определяет форму ответа. Тело должно быть валидным JSON объектом.
func DetectShape(body []byte) PayloadShape {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return ShapeUnknown
	}
	switch {
	case root.Get("account").IsObject():
		return ShapeWrapped
	case root.Get("data").IsObject():
		return ShapeData
	case root.Get("accounts").IsArray():
		return ShapeList
	case root.Get("balance").Exists():
		return ShapeFlat
	}
	return ShapeUnknown
}

// accountPayload - поля счёта, которые мы понимаем. Числа приходят
// и как JSON number, и как строка ("1234.50").
type accountPayload struct {
	ID        flexString `json:"id"`
	AccountID flexString `json:"account_id"`
	CamelID   flexString `json:"accountId"`
	Login     flexString `json:"login"`
	Balance   flexNumber `json:"balance"`
	Equity    flexNumber `json:"equity"`
	Profit    flexNumber `json:"profit"`
	Gain      flexNumber `json:"gain"`
	Trades    flexNumber `json:"trades"`
	Currency  string     `json:"currency"`
}

func (p *accountPayload) ids() []string {
	return []string{p.AccountID.value, p.CamelID.value, p.Login.value, p.ID.value}
}

func (p *accountPayload) matches(accountID string) bool {
	for _, id := range p.ids() {
		if id != "" && id == accountID {
			return true
		}
	}
	return false
}

// Normalize разбирает ответ провайдера в AccountData.
// Возвращает *ProviderError для HTML, невалидного JSON, неизвестного счёта и нулевого баланса.
func Normalize(p models.Provider, accountID string, body []byte) (*models.AccountData, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, newError(p, KindInvalidPayload, "empty response body")
	}
	// HTML вместо JSON - почти всегда неверный endpoint
	if trimmed[0] == '<' {
		return nil, newError(p, KindWrongEndpoint,
			"endpoint returned an HTML page instead of JSON, check the server endpoint URL")
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, newError(p, KindInvalidPayload, "response is not valid JSON")
	}

	raw, err := selectAccount(p, accountID, trimmed)
	if err != nil {
		return nil, err
	}

	var payload accountPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ProviderError{Provider: p, Kind: KindInvalidPayload,
			Message: "malformed account payload: " + err.Error(), Original: err}
	}

	if !payload.Balance.valid || payload.Balance.value.IsZero() {
		return nil, newError(p, KindNoBalance, "response contains no balance for account %s", accountID)
	}

	account := &models.AccountData{
		AccountID: accountID,
		Balance:   payload.Balance.float(),
		Equity:    payload.Equity.ptr(),
		Profit:    payload.Profit.ptr(),
		Gain:      payload.Gain.ptr(),
		Currency:  strings.ToUpper(strings.TrimSpace(payload.Currency)),
		Source:    string(p),
	}
	if account.AccountID == "" {
		for _, id := range payload.ids() {
			if id != "" {
				account.AccountID = id
				break
			}
		}
	}
	if payload.Trades.valid {
		n := int(payload.Trades.value.IntPart())
		account.Trades = &n
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}
	return account, nil
}

// selectAccount возвращает JSON объекта счёта в зависимости от формы ответа
func selectAccount(p models.Provider, accountID string, body []byte) ([]byte, error) {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, newError(p, KindInvalidPayload, "response is not a JSON object")
	}

	switch DetectShape(body) {
	case ShapeWrapped:
		return []byte(root.Get("account").Raw), nil
	case ShapeData:
		data := root.Get("data")
		if data.Get("account").IsObject() {
			return []byte(data.Get("account").Raw), nil
		}
		return []byte(data.Raw), nil
	case ShapeList:
		return selectFromList(p, accountID, root.Get("accounts"))
	default:
		// flat и неизвестная форма: объект целиком, отсутствие баланса проверит Normalize
		return body, nil
	}
}

func selectFromList(p models.Provider, accountID string, list gjson.Result) ([]byte, error) {
	items := list.Array()
	if len(items) == 0 {
		return nil, newError(p, KindNoBalance, "response contains no accounts")
	}

	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		var candidate accountPayload
		if err := json.Unmarshal([]byte(item.Raw), &candidate); err != nil {
			continue
		}
		if candidate.matches(accountID) {
			return []byte(item.Raw), nil
		}
	}

	// единственный счёт без совпадающего id: токен выдан на один счёт
	if len(items) == 1 && items[0].IsObject() {
		return []byte(items[0].Raw), nil
	}
	return nil, newError(p, KindInvalidPayload, "account %s not found in response", accountID)
}

// ============ Гибкие типы для чисел и идентификаторов ============

type flexNumber struct {
	value decimal.Decimal
	valid bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		f, ok := utils.ParseAmount(str)
		if !ok {
			// "" или "n/a" считаем отсутствующим значением
			return nil
		}
		n.value = decimal.NewFromFloat(f)
		n.valid = true
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	n.value = d
	n.valid = true
	return nil
}

func (n flexNumber) float() float64 {
	f, _ := n.value.Float64()
	return f
}

func (n flexNumber) ptr() *float64 {
	if !n.valid {
		return nil
	}
	f := n.float()
	return &f
}

type flexString struct {
	value string
}

func (s *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		return json.Unmarshal(data, &s.value)
	}
	s.value = raw
	return nil
}
