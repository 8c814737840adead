package middleware

import (
	"net/http"
	"strings"

	"competition/pkg/crypto"
	"competition/pkg/utils"
)

// CronSecretHeader - заголовок, которым планировщик подтверждает запуск синхронизации
const CronSecretHeader = "X-Cron-Secret"

// AdminAuth защищает управляющие endpoints.
//
// Принимаются:
//   - Authorization: Bearer <token>, токен сверяется с bcrypt-хешем ADMIN_TOKEN_HASH
//   - X-Cron-Secret, совпадающий с CRON_SECRET
//
// Если ни хеш, ни секрет не настроены, запросы пропускаются (локальный запуск).
func AdminAuth(tokenHash, cronSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokenHash == "" && cronSecret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cronSecret != "" && crypto.SecretEqual(r.Header.Get(CronSecretHeader), cronSecret) {
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := bearerToken(r); ok && tokenHash != "" {
				if err := crypto.VerifyToken(token, tokenHash); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			utils.FromContext(r.Context()).Warn("unauthorized request",
				utils.String("path", r.URL.Path),
				utils.String("client_ip", ClientIP(r)),
			)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != "" && len(token) <= crypto.MaxTokenLength
}
