package enrich_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"scanbay/internal/enrich"
	"scanbay/internal/services"
)

func TestParseBarcodes(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"4006381333931, 4954628245731", []string{"4006381333931", "4954628245731"}},
		{"4006381333931;4954628245731|123456", []string{"4006381333931", "4954628245731", "123456"}},
		{"  4006381333931  \n4954628245731\t", []string{"4006381333931", "4954628245731"}},
		{",,;;||", []string{}},
		{"", []string{}},
	}
	for _, tc := range cases {
		got, err := enrich.ParseBarcodes(tc.raw, 10)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.raw, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseBarcodesLimit(t *testing.T) {
	_, err := enrich.ParseBarcodes("1 2 3 4", 3)
	if !errors.Is(err, services.ErrBarcodeLimit) {
		t.Fatalf("expected barcode limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "maximum of 3") {
		t.Fatalf("expected configured maximum in message, got %q", err.Error())
	}
	var limitErr *enrich.BarcodeLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected typed limit error in chain, got %v", err)
	}
	if limitErr.Count != 4 || limitErr.Max != 3 {
		t.Fatalf("expected count=4 max=3, got %+v", limitErr)
	}
	if got, err := enrich.ParseBarcodes("1 2 3", 3); err != nil || len(got) != 3 {
		t.Fatalf("expected exactly-at-limit accepted, got %v %v", got, err)
	}
}
