package vouchers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service validates and settles vouchers against orders.
type Service interface {
	Use(ctx context.Context, input UseInput) (*UseResult, error)
	UseInTx(ctx context.Context, tx *gorm.DB, input UseInput) (*UseResult, error)
	RefundOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Validate(ctx context.Context, input ValidateInput) (*ValidateResult, error)
	Void(ctx context.Context, storeID uuid.UUID, code string) (*models.Voucher, error)
	GetByCode(ctx context.Context, storeID uuid.UUID, code string) (*models.Voucher, []models.VoucherTransaction, error)
}

// CartItem is the redemption-time view of one sale line.
type CartItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// UseInput carries one redemption request.
type UseInput struct {
	StoreID       uuid.UUID       `json:"store_id"`
	Code          string          `json:"code"`
	OrderID       uuid.UUID       `json:"order_id"`
	CartItems     []CartItem      `json:"cart_items"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
}

// FreeItem is a buy-X-get-Y grant attached to a redemption.
type FreeItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// UseResult reports the settled amount. AlreadyApplied is true when the
// order/voucher pair was settled by an earlier attempt.
type UseResult struct {
	VoucherID      uuid.UUID       `json:"voucher_id"`
	AmountApplied  decimal.Decimal `json:"amount_applied"`
	FreeItems      []FreeItem      `json:"free_items,omitempty"`
	AlreadyApplied bool            `json:"already_applied"`
}

// ValidateInput previews a voucher against a cart without settling it.
type ValidateInput struct {
	StoreID   uuid.UUID  `json:"store_id"`
	Code      string     `json:"code"`
	CartItems []CartItem `json:"cart_items"`
}

// ValidateResult is the non-mutating preview of a redemption.
type ValidateResult struct {
	VoucherID      uuid.UUID       `json:"voucher_id"`
	Type           enums.VoucherType `json:"type"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Balance        decimal.Decimal `json:"balance"`
	FreeItems      []FreeItem      `json:"free_items,omitempty"`
}

type service struct {
	tx   txRunner
	repo Repository
	now  func() time.Time
}

// NewService wires a voucher settlement service.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	return &service{tx: tx, repo: repo, now: time.Now}, nil
}

// Use settles the voucher in its own transaction.
func (s *service) Use(ctx context.Context, input UseInput) (*UseResult, error) {
	var result *UseResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r, terr := s.UseInTx(ctx, tx, input)
		if terr != nil {
			return terr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UseInTx settles the voucher inside the caller's transaction. The sale
// pipeline calls this under a savepoint so a voucher failure does not roll
// back the sale itself.
func (s *service) UseInTx(ctx context.Context, tx *gorm.DB, input UseInput) (*UseResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if input.Code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "voucher code is required")
	}

	repo := s.repo.WithTx(tx)

	voucher, err := repo.GetByCodeLocked(ctx, input.Code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeVoucherInvalid, "voucher not found")
		}
		return nil, err
	}
	if input.StoreID != uuid.Nil && voucher.StoreID != input.StoreID {
		return nil, apperrors.New(apperrors.CodeVoucherInvalid, "voucher belongs to a different store")
	}

	// Replay guard: an existing link row means this order already settled
	// this voucher.
	if link, lerr := repo.GetOrderLink(ctx, input.OrderID, voucher.ID); lerr == nil {
		return &UseResult{
			VoucherID:      voucher.ID,
			AmountApplied:  link.AmountApplied,
			FreeItems:      freeItems(voucher, input.CartItems),
			AlreadyApplied: true,
		}, nil
	} else if lerr != gorm.ErrRecordNotFound {
		return nil, lerr
	}

	if verr := s.checkRedeemable(voucher, input.CartItems); verr != nil {
		return nil, verr
	}

	switch voucher.Type {
	case enums.VoucherTypeGiftCard:
		return s.useGiftCard(ctx, repo, voucher, input)
	case enums.VoucherTypePromotional:
		return s.usePromotional(ctx, repo, voucher, input)
	default:
		return nil, apperrors.New(apperrors.CodeVoucherInvalid,
			fmt.Sprintf("unknown voucher type %q", voucher.Type))
	}
}

func (s *service) useGiftCard(ctx context.Context, repo Repository, voucher *models.Voucher, input UseInput) (*UseResult, error) {
	amount := input.AmountApplied
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.New(apperrors.CodeValidation, "amount applied must be positive")
	}
	if voucher.CurrentBalance.LessThan(amount) {
		return nil, apperrors.New(apperrors.CodeInsufficientBalance, "gift card balance too low").
			WithDetails(map[string]string{
				"balance":   voucher.CurrentBalance.String(),
				"requested": amount.String(),
			})
	}

	before := voucher.CurrentBalance
	voucher.CurrentBalance = before.Sub(amount)
	if err := repo.Save(ctx, voucher); err != nil {
		return nil, err
	}

	if err := repo.CreateAudit(ctx, &models.VoucherTransaction{
		VoucherID:     voucher.ID,
		OrderID:       &input.OrderID,
		Type:          enums.VoucherTransactionUsage,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  voucher.CurrentBalance,
	}); err != nil {
		return nil, err
	}

	if err := repo.CreateOrderLink(ctx, &models.OrderVoucher{
		TransactionID: input.OrderID,
		VoucherID:     voucher.ID,
		AmountApplied: amount,
	}); err != nil {
		return nil, err
	}

	return &UseResult{VoucherID: voucher.ID, AmountApplied: amount}, nil
}

func (s *service) usePromotional(ctx context.Context, repo Repository, voucher *models.Voucher, input UseInput) (*UseResult, error) {
	// The discount is recomputed server side; the terminal's preview is not
	// trusted.
	amount := discountAmount(voucher, input.CartItems)

	voucher.Status = enums.VoucherStatusConsumed
	if err := repo.Save(ctx, voucher); err != nil {
		return nil, err
	}

	if err := repo.CreateAudit(ctx, &models.VoucherTransaction{
		VoucherID:     voucher.ID,
		OrderID:       &input.OrderID,
		Type:          enums.VoucherTransactionUsage,
		Amount:        amount,
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.Zero,
	}); err != nil {
		return nil, err
	}

	if err := repo.CreateOrderLink(ctx, &models.OrderVoucher{
		TransactionID: input.OrderID,
		VoucherID:     voucher.ID,
		AmountApplied: amount,
	}); err != nil {
		return nil, err
	}

	return &UseResult{
		VoucherID:     voucher.ID,
		AmountApplied: amount,
		FreeItems:     freeItems(voucher, input.CartItems),
	}, nil
}

// RefundOrder reverses every voucher settled against the order, inside the
// caller's transaction. Gift cards get the amount credited back; consumed
// promotional vouchers return to active. Voided vouchers stay voided.
func (s *service) RefundOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order id is required")
	}

	repo := s.repo.WithTx(tx)
	links, err := repo.ListOrderLinks(ctx, orderID)
	if err != nil {
		return err
	}

	for _, link := range links {
		voucher, gerr := repo.GetByIDLocked(ctx, link.VoucherID)
		if gerr != nil {
			return gerr
		}
		if voucher.Status == enums.VoucherStatusVoided {
			continue
		}

		switch voucher.Type {
		case enums.VoucherTypeGiftCard:
			before := voucher.CurrentBalance
			voucher.CurrentBalance = before.Add(link.AmountApplied)
			if serr := repo.Save(ctx, voucher); serr != nil {
				return serr
			}
			if aerr := repo.CreateAudit(ctx, &models.VoucherTransaction{
				VoucherID:     voucher.ID,
				OrderID:       &orderID,
				Type:          enums.VoucherTransactionRefund,
				Amount:        link.AmountApplied,
				BalanceBefore: before,
				BalanceAfter:  voucher.CurrentBalance,
			}); aerr != nil {
				return aerr
			}
		case enums.VoucherTypePromotional:
			if voucher.Status == enums.VoucherStatusConsumed {
				voucher.Status = enums.VoucherStatusActive
				if serr := repo.Save(ctx, voucher); serr != nil {
					return serr
				}
			}
			if aerr := repo.CreateAudit(ctx, &models.VoucherTransaction{
				VoucherID:     voucher.ID,
				OrderID:       &orderID,
				Type:          enums.VoucherTransactionRefund,
				Amount:        link.AmountApplied,
				BalanceBefore: decimal.Zero,
				BalanceAfter:  decimal.Zero,
			}); aerr != nil {
				return aerr
			}
		}
	}

	return nil
}

// Validate previews the redemption without writing anything.
func (s *service) Validate(ctx context.Context, input ValidateInput) (*ValidateResult, error) {
	if input.Code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "voucher code is required")
	}

	voucher, err := s.repo.GetByCode(ctx, input.Code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeVoucherInvalid, "voucher not found")
		}
		return nil, err
	}
	if input.StoreID != uuid.Nil && voucher.StoreID != input.StoreID {
		return nil, apperrors.New(apperrors.CodeVoucherInvalid, "voucher belongs to a different store")
	}
	if verr := s.checkRedeemable(voucher, input.CartItems); verr != nil {
		return nil, verr
	}

	result := &ValidateResult{
		VoucherID: voucher.ID,
		Type:      voucher.Type,
		Balance:   voucher.CurrentBalance,
	}
	if voucher.Type == enums.VoucherTypePromotional {
		result.DiscountAmount = discountAmount(voucher, input.CartItems)
		result.FreeItems = freeItems(voucher, input.CartItems)
	}
	return result, nil
}

// Void irreversibly retires the voucher and freezes any remaining balance.
func (s *service) Void(ctx context.Context, storeID uuid.UUID, code string) (*models.Voucher, error) {
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "voucher code is required")
	}

	var voided *models.Voucher
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		voucher, gerr := repo.GetByCodeLocked(ctx, code)
		if gerr != nil {
			if gerr == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeVoucherInvalid, "voucher not found")
			}
			return gerr
		}
		if storeID != uuid.Nil && voucher.StoreID != storeID {
			return apperrors.New(apperrors.CodeVoucherInvalid, "voucher belongs to a different store")
		}
		if voucher.Status == enums.VoucherStatusVoided {
			voided = voucher
			return nil
		}

		voucher.Status = enums.VoucherStatusVoided
		if serr := repo.Save(ctx, voucher); serr != nil {
			return serr
		}
		if aerr := repo.CreateAudit(ctx, &models.VoucherTransaction{
			VoucherID:     voucher.ID,
			Type:          enums.VoucherTransactionVoid,
			Amount:        decimal.Zero,
			BalanceBefore: voucher.CurrentBalance,
			BalanceAfter:  voucher.CurrentBalance,
		}); aerr != nil {
			return aerr
		}
		voided = voucher
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voided, nil
}

func (s *service) GetByCode(ctx context.Context, storeID uuid.UUID, code string) (*models.Voucher, []models.VoucherTransaction, error) {
	if code == "" {
		return nil, nil, apperrors.New(apperrors.CodeValidation, "voucher code is required")
	}
	voucher, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, apperrors.New(apperrors.CodeNotFound, "voucher not found")
		}
		return nil, nil, err
	}
	if storeID != uuid.Nil && voucher.StoreID != storeID {
		return nil, nil, apperrors.New(apperrors.CodeNotFound, "voucher not found")
	}
	audit, err := s.repo.ListAudit(ctx, voucher.ID)
	if err != nil {
		return nil, nil, err
	}
	return voucher, audit, nil
}

// checkRedeemable re-validates status, expiry, and eligibility rules at
// redemption time.
func (s *service) checkRedeemable(voucher *models.Voucher, items []CartItem) error {
	switch voucher.Status {
	case enums.VoucherStatusActive:
	case enums.VoucherStatusConsumed:
		return apperrors.New(apperrors.CodeVoucherInvalid, "voucher already used")
	case enums.VoucherStatusVoided:
		return apperrors.New(apperrors.CodeVoucherInvalid, "voucher is voided")
	default:
		return apperrors.New(apperrors.CodeVoucherInvalid,
			fmt.Sprintf("voucher in unknown status %q", voucher.Status))
	}

	if voucher.ExpiresAt != nil && s.now().After(*voucher.ExpiresAt) {
		return apperrors.New(apperrors.CodeVoucherInvalid, "voucher expired")
	}

	if voucher.Type != enums.VoucherTypePromotional {
		return nil
	}

	total := cartTotal(items)
	if voucher.MinPurchase != nil && total.LessThan(*voucher.MinPurchase) {
		return apperrors.New(apperrors.CodeNotEligible, "cart total below minimum purchase").
			WithDetails(map[string]string{
				"min_purchase": voucher.MinPurchase.String(),
				"cart_total":   total.String(),
			})
	}

	if voucher.Scope == enums.VoucherScopeProducts {
		if eligibleTotal(voucher, items).IsZero() {
			return apperrors.New(apperrors.CodeNotEligible, "no eligible products in cart")
		}
	}

	if voucher.QualifyingProductID != nil {
		qty := 0
		for _, item := range items {
			if item.ProductID == *voucher.QualifyingProductID {
				qty += item.Quantity
			}
		}
		if qty < voucher.QualifyingMinQty {
			return apperrors.New(apperrors.CodeNotEligible, "qualifying item quantity not met").
				WithDetails(map[string]int{
					"required": voucher.QualifyingMinQty,
					"in_cart":  qty,
				})
		}
	}

	return nil
}

// discountAmount computes the promotional discount against the scoped base,
// capped by maxDiscount and clamped to the cart total.
func discountAmount(voucher *models.Voucher, items []CartItem) decimal.Decimal {
	total := cartTotal(items)

	var base decimal.Decimal
	switch voucher.Scope {
	case enums.VoucherScopeProducts:
		base = eligibleTotal(voucher, items)
	default:
		// Cart and subtotal scopes both discount against the summed lines;
		// line-level discounts are not modelled at redemption time.
		base = total
	}

	var amount decimal.Decimal
	switch voucher.DiscountType {
	case enums.DiscountTypePercentage:
		amount = base.Mul(voucher.DiscountValue).Div(decimal.NewFromInt(100))
	case enums.DiscountTypeFixed:
		amount = voucher.DiscountValue
	default:
		return decimal.Zero
	}

	if voucher.MaxDiscount != nil && amount.GreaterThan(*voucher.MaxDiscount) {
		amount = *voucher.MaxDiscount
	}
	if amount.GreaterThan(total) {
		amount = total
	}
	if amount.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return amount.Round(2)
}

func freeItems(voucher *models.Voucher, items []CartItem) []FreeItem {
	if voucher.Type != enums.VoucherTypePromotional {
		return nil
	}
	if voucher.QualifyingProductID == nil || voucher.FreeProductID == nil || voucher.FreeQty <= 0 {
		return nil
	}
	qty := 0
	for _, item := range items {
		if item.ProductID == *voucher.QualifyingProductID {
			qty += item.Quantity
		}
	}
	if qty < voucher.QualifyingMinQty {
		return nil
	}
	return []FreeItem{{ProductID: *voucher.FreeProductID, Quantity: voucher.FreeQty}}
}

func cartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func eligibleTotal(voucher *models.Voucher, items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if voucher.EligibleProductIDs.Contains(item.ProductID) {
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return total
}
