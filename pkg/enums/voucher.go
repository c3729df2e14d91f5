package enums

import "fmt"

// VoucherType separates stored-value cards from single-use promo codes.
type VoucherType string

const (
	VoucherTypeGiftCard    VoucherType = "gift_card"
	VoucherTypePromotional VoucherType = "promotional"
)

var validVoucherTypes = []VoucherType{
	VoucherTypeGiftCard,
	VoucherTypePromotional,
}

func (v VoucherType) IsValid() bool {
	for _, candidate := range validVoucherTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// VoucherStatus is the voucher state machine position.
type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusConsumed VoucherStatus = "consumed"
	VoucherStatusVoided   VoucherStatus = "voided"
)

var validVoucherStatuses = []VoucherStatus{
	VoucherStatusActive,
	VoucherStatusConsumed,
	VoucherStatusVoided,
}

func (v VoucherStatus) IsValid() bool {
	for _, candidate := range validVoucherStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// VoucherScope controls which part of the cart a discount is computed against.
type VoucherScope string

const (
	VoucherScopeCart     VoucherScope = "cart"
	VoucherScopeProducts VoucherScope = "products"
	VoucherScopeSubtotal VoucherScope = "subtotal"
)

var validVoucherScopes = []VoucherScope{
	VoucherScopeCart,
	VoucherScopeProducts,
	VoucherScopeSubtotal,
}

func (v VoucherScope) IsValid() bool {
	for _, candidate := range validVoucherScopes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherType converts the raw string to VoucherType.
func ParseVoucherType(value string) (VoucherType, error) {
	for _, candidate := range validVoucherTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher type %q", value)
}
