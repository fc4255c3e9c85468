package model

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the author of a message within a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

var validRoles = []Role{
	RoleUser,
	RoleAssistant,
	RoleSystem,
	RoleTool,
}

// Roles returns every known role.
func Roles() []Role {
	return slices.Clone(validRoles)
}

// ValidateRole returns an error if r is not a recognized role.
func ValidateRole(r Role) error {
	if slices.Contains(validRoles, r) {
		return nil
	}
	return fmt.Errorf("invalid role %q: must be one of %v", r, validRoles)
}

// ParseRole normalizes provider-specific author names onto Role.
// "human" maps to user; "model", "bot" and "copilot" map to assistant.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human":
		return RoleUser, nil
	case "assistant", "model", "bot", "copilot", "ai":
		return RoleAssistant, nil
	case "system":
		return RoleSystem, nil
	case "tool", "function":
		return RoleTool, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// Color returns a color name string suitable for terminal rendering.
func (r Role) Color() string {
	switch r {
	case RoleUser:
		return "blue"
	case RoleAssistant:
		return "green"
	case RoleSystem:
		return "gray"
	case RoleTool:
		return "magenta"
	default:
		return "white"
	}
}
