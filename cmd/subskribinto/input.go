package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
	"github.com/virto-network/subskribinto/extrinsicClient/keys"
)

const (
	flagKeystore     = "keystore"
	flagPhrase       = "phrase"
	flagDerivePath   = "derive-path"
	flagSeed         = "seed"
	flagCallData     = "call-data"
	flagCallDataFile = "call-data-file"
)

// passwordManager prompts on the terminal unless the command's input was redirected.
func passwordManager(cmd *cobra.Command) *keys.PasswordManager {
	if cmd.InOrStdin() == os.Stdin {
		return keys.NewPasswordManager()
	}
	return keys.NewPasswordManagerWithIO(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// readKeystore parses the keystore file at path.
func readKeystore(path string) (*keys.KeystoreDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewInvalidKeystoreError("failed to read keystore file", err)
	}
	doc, err := keys.ParseKeystore(data)
	if err != nil {
		return nil, cerrors.NewInvalidKeystoreError("failed to parse keystore file", err)
	}
	return doc, nil
}

// keystorePassphrase returns --passphrase (or SUBSKRIBINTO_PASSPHRASE) and
// prompts when neither is set.
func keystorePassphrase(cmd *cobra.Command, v *viper.Viper, doc *keys.KeystoreDocument) (string, error) {
	if v.IsSet(flagPassphrase) {
		return v.GetString(flagPassphrase), nil
	}
	return passwordManager(cmd).PromptForKeystorePassphrase(doc.Address)
}

// credentialFromFlags builds the credential source named by exactly one of
// --keystore, --phrase or --seed.
func credentialFromFlags(cmd *cobra.Command, v *viper.Viper) (keys.CredentialSource, error) {
	keystorePath, _ := cmd.Flags().GetString(flagKeystore)
	phrase, _ := cmd.Flags().GetString(flagPhrase)
	derivePath, _ := cmd.Flags().GetString(flagDerivePath)
	seed, _ := cmd.Flags().GetString(flagSeed)

	given := 0
	for _, s := range []string{keystorePath, phrase, seed} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return nil, cerrors.NewValidationError("", "exactly one of --keystore, --phrase or --seed is required")
	}

	switch {
	case phrase != "":
		return keys.Mnemonic{Phrase: phrase, DerivePath: derivePath}, nil
	case seed != "":
		raw, err := decodeHexArg(seed)
		if err != nil || len(raw) != 32 {
			return nil, cerrors.NewValidationError("", "seed must be 32 bytes of hex")
		}
		var src keys.Seed
		copy(src.Seed[:], raw)
		return src, nil
	default:
		doc, err := readKeystore(keystorePath)
		if err != nil {
			return nil, err
		}
		passphrase, err := keystorePassphrase(cmd, v, doc)
		if err != nil {
			return nil, cerrors.NewValidationError("", err.Error())
		}
		return keys.KeystoreFile{Document: doc, Passphrase: passphrase}, nil
	}
}

// readCallData takes the call from --call-data, --call-data-file or a prompt.
func readCallData(cmd *cobra.Command) ([]byte, error) {
	text, _ := cmd.Flags().GetString(flagCallData)
	path, _ := cmd.Flags().GetString(flagCallDataFile)

	switch {
	case text != "" && path != "":
		return nil, cerrors.NewValidationError("", "--call-data and --call-data-file are mutually exclusive")
	case text != "":
		return parseCallData([]byte(text))
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cerrors.NewValidationError("", errors.Wrap(err, "failed to read call data file").Error())
		}
		return parseCallData(data)
	}

	_, _ = io.WriteString(cmd.ErrOrStderr(), "Call data (hex): ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
		return nil, cerrors.NewValidationError("", "no call data given")
	}
	return parseCallData([]byte(line))
}

// parseCallData accepts hex text, with or without 0x; anything else is taken
// as raw call bytes.
func parseCallData(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, cerrors.NewValidationError("", "call data is empty")
	}
	if !bytes.HasPrefix(trimmed, []byte("0x")) && !bytes.HasPrefix(trimmed, []byte("0X")) {
		if isHexText(trimmed) {
			return decodeHexArg(string(trimmed))
		}
		return data, nil
	}
	raw, err := decodeHexArg(string(trimmed))
	if err != nil {
		return nil, cerrors.NewValidationError("", "call data is not valid hex")
	}
	if len(raw) == 0 {
		return nil, cerrors.NewValidationError("", "call data is empty")
	}
	return raw, nil
}

// isHexText reports whether b is an even-length run of hex digits.
func isHexText(b []byte) bool {
	if len(b)%2 != 0 {
		return false
	}
	for _, c := range b {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

func decodeHexArg(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
