package keys

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordManager reads keystore passphrases from the terminal, or from a
// plain reader when input is not interactive.
type PasswordManager struct {
	in  io.Reader
	out io.Writer
	fd  int
}

// NewPasswordManager creates a password manager bound to stdin/stderr.
func NewPasswordManager() *PasswordManager {
	return &PasswordManager{in: os.Stdin, out: os.Stderr, fd: int(os.Stdin.Fd())}
}

// NewPasswordManagerWithIO creates a password manager reading from in. Input
// is treated as non-interactive.
func NewPasswordManagerWithIO(in io.Reader, out io.Writer) *PasswordManager {
	return &PasswordManager{in: in, out: out, fd: -1}
}

// GetPassword prompts for a passphrase without echoing it on a terminal.
func (pm *PasswordManager) GetPassword(prompt string) (string, error) {
	fmt.Fprint(pm.out, prompt)

	if pm.fd < 0 || !term.IsTerminal(pm.fd) {
		reader := bufio.NewReader(pm.in)
		password, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || password == "") {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return strings.TrimRight(password, "\r\n"), nil
	}

	passwordBytes, err := term.ReadPassword(pm.fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(pm.out)

	return string(passwordBytes), nil
}

// PromptForKeystorePassphrase asks for the passphrase of the keystore at address.
func (pm *PasswordManager) PromptForKeystorePassphrase(address string) (string, error) {
	return pm.GetPassword(fmt.Sprintf("Passphrase for %s: ", address))
}
