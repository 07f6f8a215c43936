package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ecociclo/ecociclo/internal/auth"
)

// authError mirrors the API error envelope. The middleware cannot import the
// api package (it imports this one), so the shape is duplicated here.
type authError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	var body authError
	body.Error.Code = code
	body.Error.Message = message
	_ = json.NewEncoder(w).Encode(body)
}

// Auth validates the Bearer token on incoming requests and stores the
// authenticated user ID and role in the request context. Requests without a
// valid access token are rejected with 401.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "auth_failed", "missing bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r, http.StatusUnauthorized, "auth_failed", "invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, http.StatusUnauthorized, "auth_failed", "refresh token not accepted here")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			if claims.Role != "" {
				ctx = SetRole(ctx, claims.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role does not match.
// It must be mounted inside Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetRole(r.Context()) != role {
				writeAuthError(w, r, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
