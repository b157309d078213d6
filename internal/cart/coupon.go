package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCouponCode is the promotional code recognized out of the box.
	DefaultCouponCode = "SUMMER2024"

	invalidCouponMessage = "Invalid coupon code."
)

// DefaultCouponRate is the discount granted by DefaultCouponCode.
var DefaultCouponRate = decimal.NewFromFloat(0.20)

// Coupon is the single promotional code the engine recognizes.
type Coupon struct {
	Code string
	Rate decimal.Decimal
}

// DefaultCoupon returns SUMMER2024 at 20% off.
func DefaultCoupon() Coupon {
	return Coupon{Code: DefaultCouponCode, Rate: DefaultCouponRate}
}

// Matches compares code case-insensitively. Whitespace is significant.
func (c Coupon) Matches(code string) bool {
	if code == "" {
		return false
	}
	return strings.EqualFold(code, c.Code)
}

// AppliedMessage renders the confirmation shown for an accepted code,
// e.g. "20% discount applied!".
func (c Coupon) AppliedMessage() string {
	return fmt.Sprintf("%s%% discount applied!", c.Rate.Mul(decimal.NewFromInt(100)).String())
}
