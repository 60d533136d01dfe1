package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwtpkg "github.com/splax/onboard/pkg/jwt"
)

type authContextKey string

type authInfo struct {
	Subject string
}

const contextKeyAuth authContextKey = "onboard-admin"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAdmin ensures the request carries a valid admin bearer token.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.adminSecret == "" {
			r.logger.Error("admin secret not configured", "path", req.URL.Path)
			writeError(w, http.StatusServiceUnavailable, "admin api disabled")
			return
		}
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := jwtpkg.ParseAdmin(token, r.adminSecret)
		if err != nil {
			r.logger.Warn("admin token rejected", "error", err, "path", req.URL.Path)
			status := http.StatusUnauthorized
			if errors.Is(err, jwtpkg.ErrNotAdmin) {
				status = http.StatusForbidden
			}
			writeError(w, status, "authentication failed")
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyAuth, authInfo{Subject: claims.Subject})
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	info, ok := ctx.Value(contextKeyAuth).(authInfo)
	return info, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
