package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/pharos-avatars/internal/wallet"
	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// minPassphraseLength is enforced when a new keystore passphrase is chosen.
const minPassphraseLength = 8

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // swapped by tests
var (
	promptPasswordFn = promptPassword
	promptConfirmFn  = promptConfirm
	promptLineFn     = promptLine
)

// promptPassword prompts for a password with hidden input.
func promptPassword(prompt string) (string, error) {
	out(os.Stderr, "%s", prompt)

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		line, err := readLine(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return line, nil
	}

	password, err := term.ReadPassword(fd)
	outln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

// promptConfirm asks a yes/no question; anything but y/yes is a no.
func promptConfirm(prompt string) (bool, error) {
	out(os.Stderr, "%s [y/N]: ", prompt)
	line, err := readLine(os.Stdin)
	if err != nil {
		if err == io.EOF { //nolint:errorlint // io.EOF is returned unwrapped by bufio
			return false, nil
		}
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// promptLine reads one visible line, used for mnemonic entry.
func promptLine(prompt string) (string, error) {
	out(os.Stderr, "%s", prompt)
	return readLine(os.Stdin)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") { //nolint:errorlint // io.EOF is returned unwrapped by bufio
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptNewPassphrase asks for a keystore passphrase twice.
func promptNewPassphrase() (string, error) {
	pass, err := promptPasswordFn("Enter keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if len(pass) < minPassphraseLength {
		return "", avatarerr.WithSuggestion(
			avatarerr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", minPassphraseLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", avatarerr.WithSuggestion(avatarerr.ErrInvalidInput, "passphrases do not match")
	}
	return pass, nil
}

// terminalPrompter answers wallet prompts on the terminal.
type terminalPrompter struct {
	autoConfirm bool
}

// Compile-time interface check
var _ wallet.Prompter = (*terminalPrompter)(nil)

// newPrompter returns the prompter wallet requests are routed through.
// With --yes, approvals are given without asking; passphrases are still read.
func newPrompter() wallet.Prompter {
	return &terminalPrompter{autoConfirm: assumeYes}
}

// Confirm implements wallet.Prompter.
func (p *terminalPrompter) Confirm(prompt string) (bool, error) {
	if p.autoConfirm {
		logger.Debug("auto-approved: %s", prompt)
		return true, nil
	}
	return promptConfirmFn(prompt)
}

// Passphrase implements wallet.Prompter.
func (p *terminalPrompter) Passphrase(prompt string) (string, error) {
	if v := os.Getenv(envPassphrase); v != "" {
		return v, nil
	}
	return promptPasswordFn(prompt + ": ")
}

// envPassphrase supplies the keystore passphrase non-interactively.
const envPassphrase = "AVATARS_PASSPHRASE"
