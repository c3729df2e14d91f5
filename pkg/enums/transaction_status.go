package enums

import "fmt"

// TransactionStatus describes the lifecycle of a committed sale.
type TransactionStatus string

const (
	TransactionStatusCompleted   TransactionStatus = "completed"
	TransactionStatusVoided      TransactionStatus = "voided"
	TransactionStatusPendingSync TransactionStatus = "pending_sync"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusCompleted,
	TransactionStatusVoided,
	TransactionStatusPendingSync,
}

// IsValid reports whether the value matches the canonical transaction status enum.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts the raw string to TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
