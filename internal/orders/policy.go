package orders

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

// Operations outside the lifecycle table that the policy can also gate.
const (
	OperationHRSyncPush    = "hrsync_push"
	OperationHRSyncRemove  = "hrsync_remove"
	OperationVendorOrdered = "toggle_vendor_ordered"
)

// Policy is the settings-gated set of operations that require the strict admin role.
// It is orthogonal to status and applied per operation.
type Policy struct {
	strict map[string]struct{}
}

// NewPolicy validates operation names against the known actions and operations.
func NewPolicy(operations ...string) (Policy, error) {
	p := Policy{strict: map[string]struct{}{}}
	for _, raw := range operations {
		op := strings.TrimSpace(raw)
		if op == "" {
			continue
		}
		if !knownOperation(op) {
			return Policy{}, fmt.Errorf("unknown strict-admin operation %q", op)
		}
		p.strict[op] = struct{}{}
	}
	return p, nil
}

// RequiresStrictAdmin reports whether op is restricted to the admin role.
func (p Policy) RequiresStrictAdmin(op string) bool {
	_, ok := p.strict[op]
	return ok
}

// Check rejects non-admin roles for strict operations.
func (p Policy) Check(op string, role enums.Role) error {
	if p.RequiresStrictAdmin(op) && !role.IsStrictAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required").
			WithDetails(map[string]any{"operation": op})
	}
	return nil
}

func knownOperation(op string) bool {
	switch op {
	case OperationHRSyncPush, OperationHRSyncRemove, OperationVendorOrdered:
		return true
	}
	_, err := enums.ParseOrderAction(op)
	return err == nil
}
