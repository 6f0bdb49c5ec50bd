package enums

import "fmt"

// DisputeType maps to the commission_dispute_type enum in Postgres.
type DisputeType string

const (
	DisputeTypeIncorrectAmount  DisputeType = "incorrect_amount"
	DisputeTypeMissingSales     DisputeType = "missing_sales"
	DisputeTypeDuplicatePayment DisputeType = "duplicate_payment"
	DisputeTypeOther            DisputeType = "other"
)

var validDisputeTypes = []DisputeType{
	DisputeTypeIncorrectAmount,
	DisputeTypeMissingSales,
	DisputeTypeDuplicatePayment,
	DisputeTypeOther,
}

// IsValid reports whether the value matches the canonical dispute type enum.
func (d DisputeType) IsValid() bool {
	for _, candidate := range validDisputeTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeType converts raw input into DisputeType.
func ParseDisputeType(value string) (DisputeType, error) {
	for _, candidate := range validDisputeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute type %q", value)
}
