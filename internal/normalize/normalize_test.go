package normalize

import (
	"testing"
	"time"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"$1,234.56", f(1234.56)},
		{"1234", f(1234)},
		{"abc", nil},
		{"", nil},
		{"-$45.10", f(-45.10)},
		{"$0", f(0)},
		{"--", nil},
	}
	for _, c := range cases {
		got := Money(c.in)
		if (got == nil) != (c.want == nil) {
			t.Fatalf("Money(%q) = %v, want %v", c.in, got, c.want)
		}
		if got != nil && *got != *c.want {
			t.Errorf("Money(%q) = %v, want %v", c.in, *got, *c.want)
		}
	}
}

func TestDate(t *testing.T) {
	got := Date("03/15/2024")
	if got == nil {
		t.Fatal("expected a date for 03/15/2024")
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date(03/15/2024) = %v, want %v", got, want)
	}

	for _, in := range []string{"13/40/2024", "02/30/2023", "00/10/2020", "not a date", ""} {
		if d := Date(in); d != nil {
			t.Errorf("Date(%q) = %v, want nil", in, d)
		}
	}

	if d := Date("2/29/2024"); d == nil || d.Day() != 29 {
		t.Errorf("leap day should parse, got %v", d)
	}
	if d := Date("2021-07-04"); d == nil || ISODate(d) != "2021-07-04" {
		t.Errorf("ISO fallback failed: %v", d)
	}
	if d := Date("Jan 2019"); d == nil || d.Month() != time.January || d.Year() != 2019 {
		t.Errorf("month-year fallback failed: %v", d)
	}
}

func TestNullableTextAndStatement(t *testing.T) {
	if NullableText("  N/A ") != nil {
		t.Error("placeholder should be nil")
	}
	if v := NullableText(" John   Q  Public "); v == nil || *v != "John Q Public" {
		t.Errorf("unexpected %v", v)
	}
	for _, in := range []string{"", "   ", "-", "none reported"} {
		if got := Statement(in); got != entity.NoneReported {
			t.Errorf("Statement(%q) = %q, want sentinel", in, got)
		}
	}
	if got := Statement("I dispute the late payment."); got != "I dispute the late payment." {
		t.Errorf("statement text altered: %q", got)
	}
}

func TestScore(t *testing.T) {
	if s := Score("TransUnion 712"); s == nil || *s != 712 {
		t.Fatalf("Score = %v, want 712", s)
	}
	if s := Score("Score 999"); s != nil {
		t.Errorf("out-of-range score must be discarded, got %d", *s)
	}
	if s := Score("ref 123 then 640"); s == nil || *s != 640 {
		t.Errorf("expected first in-range token 640, got %v", s)
	}
	if s := Score("no digits"); s != nil {
		t.Errorf("expected nil, got %d", *s)
	}
	if s := Score("VantageScore (range 300-850): 712"); s == nil || *s != 712 {
		t.Errorf("range bounds must be skipped, got %v", s)
	}
	if s := Score("FICO 8 range 300 – 850"); s != nil {
		t.Errorf("a bare range has no score, got %d", *s)
	}
}

func TestBureauAndKey(t *testing.T) {
	if Bureau("Trans Union LLC") != entity.BureauTransUnion {
		t.Error("trans union spelling not recognised")
	}
	if Bureau("score 700") != "" {
		t.Error("expected empty bureau")
	}
	if Key("Date Opened:") != "dateopened" {
		t.Errorf("Key = %q", Key("Date Opened:"))
	}
}

func f(v float64) *float64 { return &v }
