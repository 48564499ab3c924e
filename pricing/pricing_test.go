package pricing

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"thousands and decimals", "ARS$1.234,50", 1234.50},
		{"no thousands", "ARS$500,00", 500},
		{"millions", "ARS$12.345.678,90", 12345678.90},
		{"space after prefix", "ARS$ 999,99", 999.99},
		{"non-breaking space", "ARS$\u00a0999,99", 999.99},
		{"integer only", "ARS$15", 15},
		{"trailing text", "ARS$15,50 + IVA", 15.50},
		{"zero", "ARS$0,00", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"", "   ", "ARS$", "Gratis", "Incluido con Game Pass", "--", ",", "ARS$abc"} {
		if got := Parse(in); got != 0 {
			t.Errorf("Parse(%q) = %v, want 0", in, got)
		}
		if _, ok := ParseAmount(in); ok {
			t.Errorf("ParseAmount(%q) reported ok for malformed input", in)
		}
	}
}

func TestParseAmount_ZeroIsValid(t *testing.T) {
	v, ok := ParseAmount("ARS$0,00")
	if !ok || v != 0 {
		t.Errorf("ParseAmount(ARS$0,00) = %v, %v; want 0, true", v, ok)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0,00"},
		{0.5, "0,50"},
		{1234.5, "1234,50"},
		{1234.56, "1234,56"},
		{666.6666666666666, "666,67"},
		{0.125, "0,13"}, // exact tie rounds away from zero
		{0.375, "0,38"},
		{2.675, "2,67"}, // binary value sits below the tie
		{1.005, "1,00"},
		{-1.5, "-1,50"},
		{-0.001, "0,00"},
		{math.NaN(), "0,00"},
		{math.Inf(1), "0,00"},
	}

	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.in, 'g', -1, 64), func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 1050, 123456, 99999999, 123456789} {
		whole := strconv.FormatInt(cents/100, 10)
		// insert thousands separators the way the storefront renders them
		var b strings.Builder
		for i, r := range whole {
			if i > 0 && (len(whole)-i)%3 == 0 {
				b.WriteByte('.')
			}
			b.WriteRune(r)
		}
		dec := strconv.FormatInt(cents%100+100, 10)[1:]
		text := CurrencyPrefix + b.String() + "," + dec

		got := Format(Parse(text))
		want := whole + "," + dec
		if got != want {
			t.Errorf("round trip of %q = %q, want %q", text, got, want)
		}
	}
}

func TestPreDiscount(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		percent float64
		want    string
		ok      bool
	}{
		{"twenty percent", 80, 20, "100,00", true},
		{"quarter off", 500, 25, "666,67", true},
		{"half off", 1000, 50, "2000,00", true},
		{"free with discount", 0, 50, "0,00", true},
		{"zero percent", 80, 0, "", false},
		{"hundred percent", 80, 100, "", false},
		{"over hundred", 80, 150, "", false},
		{"negative", 80, -10, "", false},
		{"nan", 80, math.NaN(), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PreDiscount(tt.current, tt.percent)
			if ok != tt.ok {
				t.Fatalf("PreDiscount(%v, %v) ok = %v, want %v", tt.current, tt.percent, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got < tt.current {
				t.Errorf("PreDiscount(%v, %v) = %v, lower than current price", tt.current, tt.percent, got)
			}
			if s := Format(got); s != tt.want {
				t.Errorf("Format(PreDiscount(%v, %v)) = %q, want %q", tt.current, tt.percent, s, tt.want)
			}
		})
	}
}

func TestParseDiscount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"-25%", 25, true},
		{"-12.5%", 12.5, true},
		{"  -40 % ", 40, true},
		{"60%", 60, true},
		{"", 0, false},
		{"-%", 0, false},
		{"oferta", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDiscount(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseDiscount(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(25); got != "25%" {
		t.Errorf("FormatPercent(25) = %q", got)
	}
	if got := FormatPercent(12.5); got != "12.5%" {
		t.Errorf("FormatPercent(12.5) = %q", got)
	}
}
