package enums

// DiscountKind separates globally scoped coupons from event scoped vouchers.
type DiscountKind string

const (
	DiscountKindCoupon  DiscountKind = "coupon"
	DiscountKindVoucher DiscountKind = "voucher"
)

var validDiscountKinds = newSet("discount kind",
	DiscountKindCoupon,
	DiscountKindVoucher,
)

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	return validDiscountKinds.has(d)
}

// ParseDiscountKind converts raw input into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	return validDiscountKinds.parse(value)
}

// UsageStatus is the per-user state of a discount grant.
type UsageStatus string

const (
	UsageStatusActive UsageStatus = "active"
	UsageStatusUsed   UsageStatus = "used"
)

// IsValid reports whether the value is a known UsageStatus.
func (u UsageStatus) IsValid() bool {
	return u == UsageStatusActive || u == UsageStatusUsed
}
