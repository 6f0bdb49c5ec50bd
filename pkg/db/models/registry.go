package models

// All lists every persisted model, parents before children. Used for sqlite
// schema bootstrap where the goose migrations (Postgres DDL) cannot run.
func All() []any {
	return []any{
		&CommissionPayment{},
		&CommissionAuditEntry{},
		&CommissionDispute{},
		&PayoutBatch{},
		&PayoutBatchItem{},
		&PaymentConfiguration{},
		&TaxDocument{},
		&TaxDocumentPayment{},
		&OutboxEvent{},
	}
}
