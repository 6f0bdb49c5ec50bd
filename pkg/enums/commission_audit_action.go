package enums

import "fmt"

// CommissionAuditAction maps to the commission_audit_action enum in Postgres.
type CommissionAuditAction string

const (
	CommissionAuditCreated       CommissionAuditAction = "created"
	CommissionAuditUpdated       CommissionAuditAction = "updated"
	CommissionAuditPaidManually  CommissionAuditAction = "paid_manually"
	CommissionAuditPaidAutomated CommissionAuditAction = "paid_automated"
	CommissionAuditDisputed      CommissionAuditAction = "disputed"
	CommissionAuditResolved      CommissionAuditAction = "resolved"
	CommissionAuditCancelled     CommissionAuditAction = "cancelled"
)

var validCommissionAuditActions = []CommissionAuditAction{
	CommissionAuditCreated,
	CommissionAuditUpdated,
	CommissionAuditPaidManually,
	CommissionAuditPaidAutomated,
	CommissionAuditDisputed,
	CommissionAuditResolved,
	CommissionAuditCancelled,
}

// IsValid reports whether the value matches the canonical audit action enum.
func (c CommissionAuditAction) IsValid() bool {
	for _, candidate := range validCommissionAuditActions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionAuditAction converts raw input into CommissionAuditAction.
func ParseCommissionAuditAction(value string) (CommissionAuditAction, error) {
	for _, candidate := range validCommissionAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
