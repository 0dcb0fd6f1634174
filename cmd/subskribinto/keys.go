package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/virto-network/subskribinto/extrinsicClient/keys"
)

// keysCmd returns the keys command with all subcommands
func keysCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect signing credentials",
	}

	cmd.AddCommand(keysInspectCmd(v))

	return cmd
}

// keysInspectCmd unlocks a keystore and prints the account it signs for
func keysInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <keystore.json>",
		Short: "Unlock a keystore and show its account",
		Long: `
Unlock a JSON keystore with its passphrase and print the account address,
public key and signature scheme. The address is rendered with the prefix of
the keystore's own address unless --ss58-prefix is given.

Examples:
  subskribinto keys inspect alice.json
  subskribinto keys inspect alice.json --ss58-prefix 2
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readKeystore(args[0])
			if err != nil {
				return err
			}
			passphrase, err := keystorePassphrase(cmd, v, doc)
			if err != nil {
				return err
			}

			capability, err := keys.Resolve(keys.KeystoreFile{Document: doc, Passphrase: passphrase})
			if err != nil {
				return err
			}
			defer capability.Wipe()

			prefix, _ := cmd.Flags().GetInt(flagSS58Prefix)
			if prefix < 0 {
				if _, declared, err := keys.DecodeSS58(doc.Address); err == nil {
					prefix = int(declared)
				} else {
					prefix = int(keys.DefaultSS58Prefix)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:    %s\n", capability.Address(uint16(prefix)))
			fmt.Fprintf(out, "Public key: 0x%s\n", hex.EncodeToString(capability.PublicKey()))
			fmt.Fprintf(out, "Scheme:     %s\n", capability.Scheme())
			return nil
		},
	}

	cmd.Flags().String(flagPassphrase, "", "Keystore passphrase (prompted when omitted)")
	cmd.Flags().Int(flagSS58Prefix, -1, "SS58 prefix for the printed address")

	return cmd
}
