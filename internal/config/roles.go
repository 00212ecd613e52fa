package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the closed set of instance categories in a lab cluster.
type Role string

const (
	// RoleDB hosts the database under test.
	RoleDB Role = "db"
	// RoleApp hosts load generators.
	RoleApp Role = "app"
	// RoleControl hosts monitoring and coordination tooling.
	RoleControl Role = "control"
	// RoleUnknown is returned for any tag value outside the closed set.
	RoleUnknown Role = ""
)

// Roles lists every known role in provisioning order.
var Roles = []Role{RoleDB, RoleApp, RoleControl}

// ParseRole maps a tag value to a Role. It never fails: unrecognized values
// yield RoleUnknown so callers can skip them without error handling.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleDB:
		return RoleDB
	case RoleApp:
		return RoleApp
	case RoleControl:
		return RoleControl
	default:
		return RoleUnknown
	}
}

// Known reports whether r is part of the closed role set.
func (r Role) Known() bool {
	return ParseRole(string(r)) != RoleUnknown
}

// Alias returns the host alias for the given ordinal, e.g. "db0".
func (r Role) Alias(ordinal int) string {
	return fmt.Sprintf("%s%d", r, ordinal)
}

// ParseAlias splits an alias such as "app12" into its role and ordinal.
// ok is false when the role prefix is unknown or the ordinal is missing.
func ParseAlias(alias string) (role Role, ordinal int, ok bool) {
	i := len(alias)
	for i > 0 && alias[i-1] >= '0' && alias[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(alias) {
		return RoleUnknown, 0, false
	}
	role = ParseRole(alias[:i])
	if role == RoleUnknown {
		return RoleUnknown, 0, false
	}
	ordinal, err := strconv.Atoi(alias[i:])
	if err != nil {
		return RoleUnknown, 0, false
	}
	return role, ordinal, true
}
