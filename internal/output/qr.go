package output

import (
	"io"
	"strconv"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// QRConfig configures QR code rendering.
type QRConfig struct {
	Level      qr.Level
	QuietZone  int
	HalfBlocks bool
}

// DefaultQRConfig returns the settings used for account funding codes.
// Low error correction keeps a 42-character hex address compact.
func DefaultQRConfig() QRConfig {
	return QRConfig{
		Level:      qr.L,
		QuietZone:  1,
		HalfBlocks: true,
	}
}

// RenderQR draws data as a QR code when w is a terminal.
// Non-terminal writers get no output so piped JSON stays clean.
func RenderQR(w io.Writer, data string, cfg QRConfig) error {
	if !IsTerminal(w) {
		return nil
	}

	qrterminal.GenerateWithConfig(data, qrterminal.Config{
		Level:          cfg.Level,
		Writer:         w,
		QuietZone:      cfg.QuietZone,
		HalfBlocks:     cfg.HalfBlocks,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}

// FundingURI builds an EIP-681 payment URI for an address on a chain.
func FundingURI(address string, chainID int64) string {
	return "ethereum:" + address + "@" + strconv.FormatInt(chainID, 10)
}
