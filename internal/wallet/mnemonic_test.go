package wallet

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonic(t *testing.T) {
	t.Parallel()

	for _, words := range []int{12, 24} {
		m, err := GenerateMnemonic(words)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(m), words)
		require.NoError(t, ValidateMnemonic(m))
	}

	_, err := GenerateMnemonic(15)
	require.ErrorIs(t, err, avatarerr.ErrInvalidInput)
}

func TestValidateMnemonic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", testMnemonic, false},
		{"numbered list", "1. abandon\n2. abandon\n3. abandon\n4. abandon\n5. abandon\n6. abandon\n" +
			"7. abandon\n8. abandon\n9. abandon\n10. abandon\n11. abandon\n12. about", false},
		{"comma separated upper case", strings.ToUpper(strings.ReplaceAll(testMnemonic, " ", ", ")), false},
		{"too short", "abandon abandon abandon", true},
		{"bad checksum", strings.Repeat("abandon ", 12), true},
		{"typo", strings.Replace(testMnemonic, "about", "abuot", 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateMnemonic(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, avatarerr.ErrInvalidMnemonic)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateMnemonicSuggestsTypoFix(t *testing.T) {
	t.Parallel()

	err := ValidateMnemonic(strings.Replace(testMnemonic, "about", "abuot", 1))

	var ae *avatarerr.AvatarError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Suggestion, "word 12: 'abuot'")
}

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	key, err := DeriveKey(testMnemonic, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", crypto.PubkeyToAddress(key.PublicKey).Hex())

	next, err := DeriveKey(testMnemonic, "", 1)
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(next.PublicKey))

	_, err = DeriveKey("not a mnemonic", "", 0)
	require.ErrorIs(t, err, avatarerr.ErrInvalidMnemonic)
}

func TestSuggestWord(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abandon", SuggestWord("abandon"))
	assert.Equal(t, "about", SuggestWord("abuot"))
	assert.Empty(t, SuggestWord("xyzzyqqq"))
	assert.True(t, IsValidWord("ZOO"))
	assert.False(t, IsValidWord("zooo"))
}

func TestFormatTypoSuggestions(t *testing.T) {
	t.Parallel()

	out := FormatTypoSuggestions([]TypoInfo{
		{Index: 0, Word: "abandn", Suggestion: "abandon"},
		{Index: 4, Word: "qqqqqqq"},
	})
	assert.Equal(t, "word 1: 'abandn' - did you mean 'abandon'?\nword 5: 'qqqqqqq' is not a valid BIP39 word", out)
}
