package kdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKEK_Deterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0xAB}, 16)

	k1 := DeriveKEK("correct horse battery staple", salt)
	k2 := DeriveKEK("correct horse battery staple", salt)

	require.Len(t, k1, KeyLen)
	require.Equal(t, k1, k2)
}

func TestDeriveKEK_DifferentInputsDifferentKeys(t *testing.T) {
	salt1 := bytes.Repeat([]byte{0x01}, 16)
	salt2 := bytes.Repeat([]byte{0x02}, 16)

	require.NotEqual(t, DeriveKEK("pass", salt1), DeriveKEK("pass", salt2))
	require.NotEqual(t, DeriveKEK("pass", salt1), DeriveKEK("other", salt1))
}
