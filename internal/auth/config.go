package auth

import (
	"errors"
	"time"
)

// Roles a staff account may hold.
const (
	RoleSuperAdmin     = "Super Admin"
	RoleConsultant     = "Consultant"
	RoleMedicalOfficer = "Medical Officer"
	RoleNurse          = "Nurse"
	RoleHouseOfficer   = "House Officer"
)

// Roles lists every valid role.
var Roles = []string{RoleSuperAdmin, RoleConsultant, RoleMedicalOfficer, RoleNurse, RoleHouseOfficer}

// DefaultExpiry is the lifetime of an issued token.
const DefaultExpiry = time.Hour

// Config holds token signing configuration.
type Config struct {
	Secret []byte
	Expiry time.Duration
}

// NewConfig builds a Config from a shared secret. A zero expiry falls back
// to DefaultExpiry.
func NewConfig(secret string, expiry time.Duration) (Config, error) {
	if secret == "" {
		return Config{}, errors.New("jwt secret must not be empty")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return Config{Secret: []byte(secret), Expiry: expiry}, nil
}

// IsValidRole reports whether role is one of Roles.
func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
