package fpay32

import (
	"strings"
	"testing"
)

// getPrefix selects the currency prefix based on the fuzzer-selected input
// byte "net". A small share of inputs get no prefix, allowing the fuzzer to
// generate invalid prefixes too.
func getPrefix(net byte) string {
	switch {
	case net < 0x10:
		return ""
	case net < 0x60:
		return Fibb.Prefix()
	case net < 0xb0:
		return Fibt.Prefix()
	default:
		return Fibd.Prefix()
	}
}

// FuzzDecode checks that every string that decodes re-encodes into a string
// that decodes to an equal invoice.
func FuzzDecode(f *testing.F) {
	valid, err := testBuilder().
		PaymentPreimage(testPaymentPreimage).
		Description(testCupOfCoffee).
		Build()
	if err != nil {
		f.Fatal(err)
	}
	f.Add(byte(0x20), strings.TrimPrefix(valid.String(), Fibt.Prefix()))

	f.Fuzz(func(t *testing.T, net byte, data string) {
		invoiceStr := getPrefix(net) + data

		invoice, err := Decode(invoiceStr)
		if err != nil {
			return
		}

		encoded, err := invoice.Encode()
		if err != nil {
			t.Fatalf("decoded invoice does not encode: %v", err)
		}

		again, err := Decode(encoded)
		if err != nil {
			t.Fatalf("re-encoded invoice does not decode: %v", err)
		}
		if !invoice.Equal(again) {
			t.Fatalf("round trip mismatch for %q", invoiceStr)
		}
	})
}
