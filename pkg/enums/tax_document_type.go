package enums

import "fmt"

// TaxDocumentType maps to the tax_document_type enum in Postgres.
type TaxDocumentType string

const (
	TaxDocument1099              TaxDocumentType = "1099"
	TaxDocumentSummary           TaxDocumentType = "summary"
	TaxDocumentDetailedStatement TaxDocumentType = "detailed_statement"
)

var validTaxDocumentTypes = []TaxDocumentType{
	TaxDocument1099,
	TaxDocumentSummary,
	TaxDocumentDetailedStatement,
}

// IsValid reports whether the value matches the canonical tax document type enum.
func (t TaxDocumentType) IsValid() bool {
	for _, candidate := range validTaxDocumentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTaxDocumentType converts raw input into TaxDocumentType.
func ParseTaxDocumentType(value string) (TaxDocumentType, error) {
	for _, candidate := range validTaxDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tax document type %q", value)
}
