package scpcourt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOption(t *testing.T) {
	options := []selectOption{
		{Value: "", Label: "Select Case Type"},
		{Value: "1", Label: "C.A."},
		{Value: "2", Label: "C.M.A."},
		{Value: "3", Label: "C.P."},
		{Value: "9", Label: "Crl.Sh.P."},
	}

	for _, want := range []string{"C.A.", "C.A", "CA", "c.a."} {
		option, err := resolveOption(options, want)
		require.NoError(t, err, "want %q", want)
		require.Equal(t, "1", option.Value, "want %q", want)
	}

	option, err := resolveOption(options, "Crl Sh P")
	require.NoError(t, err)
	require.Equal(t, "9", option.Value)

	// the placeholder option must never win
	_, err = resolveOption(options, "Select Case Type")
	require.Error(t, err)

	_, err = resolveOption(options, "Suo Moto")
	require.Error(t, err)
}

func TestResolveOptionYears(t *testing.T) {
	options := []selectOption{
		{Value: "2019", Label: "2019"},
		{Value: "2020", Label: "2020"},
	}
	option, err := resolveOption(options, "2020")
	require.NoError(t, err)
	require.Equal(t, "2020", option.Value)
}
