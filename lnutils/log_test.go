package lnutils

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

// TestLogClosureLazy checks that the closure only runs when formatted.
func TestLogClosureLazy(t *testing.T) {
	t.Parallel()

	var calls int
	c := NewLogClosure(func() string {
		calls++
		return "expensive"
	})
	require.Zero(t, calls)

	require.Equal(t, "expensive", c.String())
	require.Equal(t, 1, calls)
}

// TestSpewLogClosure checks that spew output includes the dumped fields.
func TestSpewLogClosure(t *testing.T) {
	t.Parallel()

	type sample struct {
		Name string
	}
	out := SpewLogClosure(sample{Name: "coffee"}).String()
	require.Contains(t, out, "coffee")
}

// TestLogPubKey checks the attribute produced for nil and real keys.
func TestLogPubKey(t *testing.T) {
	t.Parallel()

	attr := LogPubKey("payee", nil)
	require.Equal(t, "payee", attr.Key)
	require.Contains(t, attr.Value.Resolve().String(), "<nil>")

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	attr = LogPubKey("payee", priv.PubKey())
	require.Equal(t, "payee", attr.Key)
	require.NotEmpty(t, attr.Value.Resolve().String())
}
