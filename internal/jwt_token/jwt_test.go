package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
)

func TestJWTService(t *testing.T) {
	servicio := NewJWTService("clave-de-prueba", "sigej", "sigej-api")
	juez := domain.NewFuncionarioID()

	t.Run("round trip preserves identity and role", func(t *testing.T) {
		token, err := servicio.GenerateAccessToken(juez, domain.RolJuez, "jueza@pjud.example", time.Hour)
		require.NoError(t, err)

		claims, err := servicio.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, juez.String(), claims.FuncionarioID)
		assert.Equal(t, string(domain.RolJuez), claims.Rol)

		actor, err := ActorDe(claims)
		require.NoError(t, err)
		assert.Equal(t, juez, actor.FuncionarioID)
		assert.Equal(t, domain.RolJuez, actor.Rol)
		assert.Equal(t, "jueza@pjud.example", actor.Correo)
	})

	t.Run("expired token is unauthorized", func(t *testing.T) {
		token, err := servicio.GenerateAccessToken(juez, domain.RolJuez, "jueza@pjud.example", -time.Minute)
		require.NoError(t, err)

		_, err = servicio.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("token signed with another key is rejected", func(t *testing.T) {
		otro := NewJWTService("otra-clave", "sigej", "sigej-api")
		token, err := otro.GenerateAccessToken(juez, domain.RolJuez, "jueza@pjud.example", time.Hour)
		require.NoError(t, err)

		_, err = servicio.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience is rejected", func(t *testing.T) {
		otro := NewJWTService("clave-de-prueba", "sigej", "otra-api")
		token, err := otro.GenerateAccessToken(juez, domain.RolJuez, "jueza@pjud.example", time.Hour)
		require.NoError(t, err)

		_, err = servicio.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("unknown role claim is rejected", func(t *testing.T) {
		_, err := ActorDe(&Claims{
			FuncionarioID: juez.String(),
			Rol:           "SUPERUSUARIO",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
