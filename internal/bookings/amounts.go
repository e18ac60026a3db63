package bookings

import (
	pkgerrors "github.com/angelmondragon/tixmarket-backend/pkg/errors"
)

// amounts is the price breakdown frozen onto a booking at creation.
type amounts struct {
	Total           int64
	CouponDiscount  int64
	VoucherDiscount int64
	Points          int64
	Final           int64
}

// computeAmounts prices qty seats at unitPrice. Coupon, voucher and points
// stack additively and the final amount floors at zero. A paid offering
// must still leave something to pay.
func computeAmounts(unitPrice int64, qty int, coupon, voucher, points int64) (amounts, error) {
	out := amounts{
		Total:           unitPrice * int64(qty),
		CouponDiscount:  coupon,
		VoucherDiscount: voucher,
		Points:          points,
	}
	out.Final = out.Total - coupon - voucher - points
	if out.Final < 0 {
		out.Final = 0
	}
	if unitPrice > 0 && out.Final <= 0 {
		return amounts{}, pkgerrors.New(pkgerrors.CodeInvalidAmount, "discounts cover the whole price of a paid offering").
			WithDetails(map[string]any{
				"total":            out.Total,
				"coupon_discount":  coupon,
				"voucher_discount": voucher,
				"points":           points,
			})
	}
	return out, nil
}
