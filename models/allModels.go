package models

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&ProjectMember{},
		&Contractor{},
		&Item{},
		&CostDetail{},
		&Invoice{},
		&InvoiceItem{},
		&Payment{},
		&PaymentDistribution{},
		&SequenceCounter{},
		&IdempotencyKey{},
	}
}
