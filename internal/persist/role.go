package persist

import "fmt"

// Role is the fixed position of a context in the hierarchy.
type Role int

const (
	RoleRoot Role = iota + 1
	RoleMain
	RoleLeaf
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleMain:
		return "main"
	case RoleLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole maps "root", "main" or "leaf" to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "root":
		return RoleRoot, nil
	case "main":
		return RoleMain, nil
	case "leaf":
		return RoleLeaf, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
