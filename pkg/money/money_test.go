package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"149", 14900},
		{"149.5", 14950},
		{"149.50", 14950},
		{"0.01", 1},
		{"-10", -1000},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsSubPaisa(t *testing.T) {
	if _, err := Parse("1.005"); !errors.Is(err, ErrPrecision) {
		t.Fatalf("expected ErrPrecision, got %v", err)
	}
}

func TestOutOfRangeRejected(t *testing.T) {
	for _, in := range []string{"100000000000000000000", "1e30", "-1e30", "92233720368547758.08"} {
		var a Amount
		if err := json.Unmarshal([]byte(in), &a); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("unmarshal %s: got %d, err %v", in, a, err)
		}
	}
	a, err := Parse("92233720368547758.07")
	if err != nil || a != math.MaxInt64 {
		t.Fatalf("largest amount: %d, %v", a, err)
	}
}

func TestAddDetectsOverflow(t *testing.T) {
	if _, ok := Add(math.MaxInt64, FromRupees(1)); ok {
		t.Fatal("expected overflow")
	}
	if _, ok := Add(math.MinInt64, -1); ok {
		t.Fatal("expected underflow")
	}
	if sum, ok := Add(150, -50); !ok || sum != 100 {
		t.Fatalf("Add(150, -50) = %d, %v", sum, ok)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	var body struct {
		Amount Amount `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 99.9}`), &body); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if body.Amount != 9990 {
		t.Fatalf("expected 9990 paise, got %d", body.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount": "12.34"}`), &body); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	out, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":12.34}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestMulRate(t *testing.T) {
	rate := decimal.RequireFromString("0.10")
	if got := FromRupees(300).MulRate(rate); got != FromRupees(30) {
		t.Fatalf("10%% of 300 = %s, want 30.00", got)
	}
	// 10% of 0.05 is half a paisa, rounds up.
	if got := Amount(5).MulRate(rate); got != 1 {
		t.Fatalf("expected rounding to 1 paisa, got %d", got)
	}
}
