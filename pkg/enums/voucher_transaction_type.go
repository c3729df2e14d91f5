package enums

import "fmt"

// VoucherTransactionType labels rows in the voucher balance audit trail.
type VoucherTransactionType string

const (
	VoucherTransactionCreate VoucherTransactionType = "create"
	VoucherTransactionUsage  VoucherTransactionType = "usage"
	VoucherTransactionRefund VoucherTransactionType = "refund"
	VoucherTransactionVoid   VoucherTransactionType = "void"
)

var validVoucherTransactionTypes = []VoucherTransactionType{
	VoucherTransactionCreate,
	VoucherTransactionUsage,
	VoucherTransactionRefund,
	VoucherTransactionVoid,
}

// IsValid reports whether the value matches the canonical audit row type enum.
func (v VoucherTransactionType) IsValid() bool {
	for _, candidate := range validVoucherTransactionTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherTransactionType converts the raw string to VoucherTransactionType.
func ParseVoucherTransactionType(value string) (VoucherTransactionType, error) {
	for _, candidate := range validVoucherTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher transaction type %q", value)
}
