package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units. It serialises with both the
// raw integer and a fixed two-place major-unit string.
type Money int64

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Shift(-2)
}

// String renders the major-unit amount, e.g. 1250 -> "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

type moneyJSON struct {
	Minor int64  `json:"minor"`
	Major string `json:"major"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Minor: int64(m), Major: m.String()})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var payload moneyJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*m = Money(payload.Minor)
	return nil
}
