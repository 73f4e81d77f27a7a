package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/pharos-avatars/internal/output"
	"github.com/mrz1836/pharos-avatars/internal/wallet"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

func withAccountFlags(t *testing.T, words int, qr bool, index uint32) {
	t.Helper()
	origWords, origQR, origIndex := createWords, createQR, importIndex
	t.Cleanup(func() { createWords, createQR, importIndex = origWords, origQR, origIndex })
	createWords, createQR, importIndex = words, qr, index
}

func TestAccountCreateAndList(t *testing.T) {
	withTestGlobals(t, output.FormatJSON)
	withMockPrompts(t, testPassphrase, false, "")
	withAccountFlags(t, 12, false, 0)

	cmd, buf := newTestCmd()
	require.NoError(t, runAccountCreate(cmd, nil))

	var created AccountCreateResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &created))
	require.NoError(t, wallet.ValidateMnemonic(created.Mnemonic))
	assert.Len(t, strings.Fields(created.Mnemonic), 12)
	assert.Equal(t, cfg.GetKeystoreDir(), created.Keystore)

	buf.Reset()
	require.NoError(t, runAccountList(cmd, nil))

	var items []AccountListItem
	require.NoError(t, json.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, created.Address, items[0].Address)
	assert.False(t, items[0].Connected)
	assert.Nil(t, items[0].ConnectedUntil)
	assert.NotEmpty(t, items[0].KeystoreFile)
}

func TestAccountCreateText(t *testing.T) {
	withTestGlobals(t, output.FormatText)
	withMockPrompts(t, testPassphrase, false, "")
	withAccountFlags(t, 24, true, 0)

	cmd, buf := newTestCmd()
	require.NoError(t, runAccountCreate(cmd, nil))

	text := buf.String()
	assert.Contains(t, text, "Account created")
	assert.Contains(t, text, " 1. ")
	assert.Contains(t, text, "24. ")
	assert.Contains(t, text, "Fund this address on chain 688688")
}

func TestAccountCreateRejectsWordCount(t *testing.T) {
	withTestGlobals(t, output.FormatText)
	withMockPrompts(t, testPassphrase, false, "")
	withAccountFlags(t, 15, false, 0)

	cmd, _ := newTestCmd()
	err := runAccountCreate(cmd, nil)
	require.Error(t, err)
	assert.True(t, avatarerr.Is(err, avatarerr.ErrInvalidInput))
}

func TestAccountImport(t *testing.T) {
	t.Run("known mnemonic", func(t *testing.T) {
		withTestGlobals(t, output.FormatText)
		withMockPrompts(t, testPassphrase, false, "  "+strings.ToUpper(testMnemonic)+"  ")
		withAccountFlags(t, 12, false, 0)

		cmd, buf := newTestCmd()
		require.NoError(t, runAccountImport(cmd, nil))
		assert.Equal(t, "Imported "+testAddress+"\n", buf.String())
	})

	t.Run("typo", func(t *testing.T) {
		withTestGlobals(t, output.FormatText)
		typo := strings.Replace(testMnemonic, "about", "abuot", 1)
		withMockPrompts(t, testPassphrase, false, typo)
		withAccountFlags(t, 12, false, 0)

		cmd, _ := newTestCmd()
		require.Error(t, runAccountImport(cmd, nil))

		_, err := openWallet(false)
		require.Error(t, err, "a rejected mnemonic must not create the keystore")
	})
}

func TestAccountListWithoutKeystore(t *testing.T) {
	withTestGlobals(t, output.FormatText)

	cmd, _ := newTestCmd()
	err := runAccountList(cmd, nil)
	require.Error(t, err)
	assert.True(t, avatarerr.Is(err, avatarerr.ErrProviderAbsent))
}

func TestDisplayMnemonic(t *testing.T) {
	var sb strings.Builder
	displayMnemonic(&sb, testMnemonic)

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], " 1. abandon")
	assert.Contains(t, lines[2], "12. about")
}
