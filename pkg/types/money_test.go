package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyString(t *testing.T) {
	cases := map[Money]string{
		0:      "0.00",
		5:      "0.05",
		1250:   "12.50",
		200000: "2000.00",
		-75:    "-0.75",
	}
	for amount, want := range cases {
		if got := amount.String(); got != want {
			t.Fatalf("Money(%d).String() = %q, want %q", int64(amount), got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 2000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"total":{"minor":2000,"major":"20.00"}}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	var decoded struct {
		Total Money `json:"total"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Total != 2000 {
		t.Fatalf("unexpected decoded value %d", decoded.Total)
	}
}
