package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusAccepted  Status = "Accepted"
	StatusShipped   Status = "Shipped"
	StatusCompleted Status = "Completed"
)

// Next returns the only status reachable from s. Completed is terminal.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPending:
		return StatusAccepted, true
	case StatusAccepted:
		return StatusShipped, true
	case StatusShipped:
		return StatusCompleted, true
	default:
		return "", false
	}
}

func (s Status) IsTerminal() bool { return s == StatusCompleted }

func (s Status) String() string { return string(s) }

func CanTransition(from, to Status) bool {
	next, ok := from.Next()
	return ok && next == to
}

func ParseStatus(v string) (Status, error) {
	switch s := Status(v); s {
	case StatusPending, StatusAccepted, StatusShipped, StatusCompleted:
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", v)}
}

type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleSeller
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "Customer"
	case RoleSeller:
		return "Seller"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func ParseRole(v string) (Role, error) {
	switch v {
	case "Customer":
		return RoleCustomer, nil
	case "Seller":
		return RoleSeller, nil
	}
	return 0, &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", v)}
}
