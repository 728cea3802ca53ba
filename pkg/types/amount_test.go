package types

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"0", "0", false},
		{"21000", "21000", false},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", "115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"1.5", "", true},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestMinMaxAmount(t *testing.T) {
	a, b := MustAmount("100"), MustAmount("80")
	if got := MinAmount(a, b); !got.Equal(b) {
		t.Errorf("MinAmount = %s, want 80", got)
	}
	if got := MaxAmount(a, b); !got.Equal(a) {
		t.Errorf("MaxAmount = %s, want 100", got)
	}
}

func TestParseFormatUnits(t *testing.T) {
	got, err := ParseUnits("1.5", 18)
	if err != nil {
		t.Fatalf("ParseUnits: %v", err)
	}
	if got.String() != "1500000000000000000" {
		t.Errorf("ParseUnits = %s", got)
	}
	if s := FormatUnits(got, 18); s != "1.500000000000000000" {
		t.Errorf("FormatUnits = %s", s)
	}
	if _, err := ParseUnits("0.0000001", 6); err == nil {
		t.Error("expected error for too many decimals")
	}
	if _, err := ParseUnits("-1", 6); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestAmountBigRoundtrip(t *testing.T) {
	b, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	a := AmountFromBig(b)
	if BigInt(a).Cmp(b) != 0 {
		t.Errorf("BigInt(AmountFromBig(x)) = %s, want %s", BigInt(a), b)
	}
	if !AmountFromBig(nil).IsZero() {
		t.Error("AmountFromBig(nil) should be zero")
	}
}
