package domain

// Rol enumerates the judicial roles the core authorizes against. The caller's
// role arrives in the request context; services re-check it per operation.
type Rol string

const (
	RolJuez       Rol = "JUEZ"
	RolSecretario Rol = "SECRETARIO"
	RolAdminCJ    Rol = "ADMIN_CJ"
)

// Valido reports whether the role is one the core knows.
func (r Rol) Valido() bool {
	switch r {
	case RolJuez, RolSecretario, RolAdminCJ:
		return true
	}
	return false
}

// PuedeLeerTodas reports whether the role may read decisions it does not own.
// ADMIN_CJ and SECRETARIO read across decisions but never author or sign.
func (r Rol) PuedeLeerTodas() bool {
	return r == RolAdminCJ || r == RolSecretario
}
