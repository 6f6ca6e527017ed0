package message

import (
	"fmt"
	"reflect"
	"slices"
)

// Role is a capability announced by a peer in HELLO or WELCOME details.
type Role string

// Client roles, announced in HELLO.
const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
	RoleCaller     Role = "caller"
	RoleCallee     Role = "callee"
)

// Router roles, announced in WELCOME.
const (
	RoleBroker Role = "broker"
	RoleDealer Role = "dealer"
)

var (
	clientRoles = []Role{RolePublisher, RoleSubscriber, RoleCaller, RoleCallee}
	routerRoles = []Role{RoleBroker, RoleDealer}
)

// roles extracts the role names announced under details["roles"]. The value
// may be a list of names or a dictionary keyed by name, the latter being the
// usual wire convention ({"roles": {"broker": {}}}). Every announced role must
// be one of allowed.
func roles(details Dict, allowed []Role) ([]Role, error) {
	raw, ok := details["roles"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: roles missing", ErrInvalidDetails)
	}

	var names []any
	switch r := raw.(type) {
	case map[string]any:
		for name := range r {
			names = append(names, name)
		}
	case []any:
		names = r
	case []string:
		for _, name := range r {
			names = append(names, name)
		}
	case []Role:
		for _, name := range r {
			names = append(names, name)
		}
	default:
		rv := reflect.ValueOf(raw)
		switch {
		case rv.Kind() == reflect.Slice:
			for i := 0; i < rv.Len(); i++ {
				names = append(names, rv.Index(i).Interface())
			}
		case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
			for _, k := range rv.MapKeys() {
				names = append(names, k.String())
			}
		default:
			return nil, fmt.Errorf("%w: roles must be a list or dictionary, got %T", ErrInvalidDetails, raw)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: roles empty", ErrInvalidDetails)
	}

	out := make([]Role, 0, len(names))
	for _, n := range names {
		var role Role
		switch v := n.(type) {
		case string:
			role = Role(v)
		case Role:
			role = v
		default:
			return nil, fmt.Errorf("%w: role %v is not a string", ErrInvalidRole, n)
		}
		if !slices.Contains(allowed, role) {
			return nil, fmt.Errorf("%w: %q not in %v", ErrInvalidRole, role, allowed)
		}
		if !slices.Contains(out, role) {
			out = append(out, role)
		}
	}
	slices.Sort(out)
	return out, nil
}
