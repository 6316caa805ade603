package clients

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldSearchTerm(t *testing.T) {
	cases := map[string]string{
		"Hédi":      "hedi",
		"Générale":  "generale",
		"BEN SALAH": "ben salah",
		"çédille":   "cedille",
		"plain":     "plain",
		"":          "",
	}
	for in, want := range cases {
		require.Equal(t, want, foldSearchTerm(in), "folding %q", in)
	}
}
