// Package jwttoken issues and validates the access tokens that carry a
// funcionario's identity and role. HS256 with a deployment key; the role
// claim is re-validated on every request, never trusted as a free string.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/requestcontext"
)

// Claims are the token claims for funcionario access tokens.
type Claims struct {
	FuncionarioID string `json:"funcionario_id"`
	Rol           string `json:"rol"`
	Correo        string `json:"correo"`
	jwt.RegisteredClaims
}

// JWTService handles token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken signs a token for the funcionario.
func (s *JWTService) GenerateAccessToken(funcionarioID domain.FuncionarioID, rol domain.Rol, correo string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		FuncionarioID: funcionarioID.String(),
		Rol:           string(rol),
		Correo:        correo,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token string.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "el token ha expirado")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token inválido")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token inválido")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "claims de token inválidos")
	}
	return claims, nil
}

// ActorDe converts validated claims into the request actor, rejecting tokens
// whose identity or role does not parse.
func ActorDe(claims *Claims) (requestcontext.ActorContext, error) {
	funcionarioID, err := domain.ParseFuncionarioID(claims.FuncionarioID)
	if err != nil {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "identidad de token inválida")
	}
	rol := domain.Rol(claims.Rol)
	if !rol.Valido() {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "rol de token inválido")
	}
	return requestcontext.ActorContext{
		FuncionarioID: funcionarioID,
		Rol:           rol,
		Correo:        claims.Correo,
	}, nil
}
