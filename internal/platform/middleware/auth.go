package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	jwttoken "sigej/internal/jwt_token"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/platform/httputil"
	"sigej/pkg/requestcontext"
)

// JWTValidator defines the interface for validating access tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// RequireAuth validates the bearer token and places the acting funcionario in
// the context. Handlers downstream can assume a non-anonymous actor.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "acceso sin token",
					"request_id", requestcontext.RequestID(ctx),
					"ruta", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "falta el encabezado Authorization"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "token rechazado",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			actor, err := jwttoken.ActorDe(claims)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

// RequireRol rejects actors whose role is not in the allowed set. Used for
// coarse route gating; entity-level ownership checks stay in the services,
// which also audit the denials.
func RequireRol(roles ...domain.Rol) func(http.Handler) http.Handler {
	permitidos := make(map[domain.Rol]struct{}, len(roles))
	for _, rol := range roles {
		permitidos[rol] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := requestcontext.Actor(r.Context())
			if _, ok := permitidos[actor.Rol]; !ok {
				httputil.WriteError(w, dErrors.NewMotivo(dErrors.CodeForbidden, dErrors.MotivoNoAutorizado,
					"rol insuficiente para esta ruta"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
