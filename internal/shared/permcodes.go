package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// Permission codes follow the MODULE:ACTION form, both parts uppercase
// letters and underscores.
var permCodePattern = regexp.MustCompile(`^[A-Z_]+:[A-Z_]+$`)

const permCodeSeparator = ":"

// Core platform permission codes.
const (
	PermUserView        = "USER:VIEW"
	PermUserCreate      = "USER:CREATE"
	PermUserUpdate      = "USER:UPDATE"
	PermUserDelete      = "USER:DELETE"
	PermUserForceLogout = "USER:FORCE_LOGOUT"

	PermRoleView   = "ROLE:VIEW"
	PermRoleCreate = "ROLE:CREATE"
	PermRoleUpdate = "ROLE:UPDATE"
	PermRoleDelete = "ROLE:DELETE"

	PermPermissionView   = "PERMISSION:VIEW"
	PermPermissionCreate = "PERMISSION:CREATE"
	PermPermissionUpdate = "PERMISSION:UPDATE"
	PermPermissionDelete = "PERMISSION:DELETE"
)

// IsValidPermCode reports whether code is a well-formed permission code.
func IsValidPermCode(code string) bool {
	return permCodePattern.MatchString(code)
}

// JoinPermCode builds a permission code from module and action names.
func JoinPermCode(module, action string) string {
	return strings.ToUpper(module) + permCodeSeparator + strings.ToUpper(action)
}

// SplitPermCode splits a permission code into its module and action parts.
func SplitPermCode(code string) (module, action string, err error) {
	if !IsValidPermCode(code) {
		return "", "", fmt.Errorf("malformed permission code %q", code)
	}
	parts := strings.SplitN(code, permCodeSeparator, 2)
	return parts[0], parts[1], nil
}
