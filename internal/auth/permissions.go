package auth

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Permissions maps role -> []permission
type Permissions map[string][]string

type permissionsFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPermissions loads a permissions.yml file and returns a role->permissions map.
// Unknown role names are rejected.
func LoadPermissions(path string) (Permissions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf permissionsFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, err
	}
	for role := range pf.Roles {
		if !IsValidRole(role) {
			return nil, fmt.Errorf("permissions file %s: unknown role %q", path, role)
		}
	}
	return Permissions(pf.Roles), nil
}

// Allows reports whether role holds permission.
func (p Permissions) Allows(role, permission string) bool {
	for _, granted := range p[role] {
		if granted == permission {
			return true
		}
	}
	return false
}

// RolesWith returns the sorted roles that hold permission.
func (p Permissions) RolesWith(permission string) []string {
	roles := []string{}
	for role := range p {
		if p.Allows(role, permission) {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}
