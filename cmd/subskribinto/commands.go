package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/virto-network/subskribinto/extrinsicClient/chain"
	"github.com/virto-network/subskribinto/extrinsicClient/config"
	"github.com/virto-network/subskribinto/extrinsicClient/core"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
	"github.com/virto-network/subskribinto/extrinsicClient/logger"
	"github.com/virto-network/subskribinto/extrinsicClient/tracker"
)

func InitRootCmd(rootCmd *cobra.Command, v *viper.Viper) {
	rootCmd.AddCommand(submitCmd(v))
	rootCmd.AddCommand(decodeCmd(v))
	rootCmd.AddCommand(keysCmd(v))
	rootCmd.AddCommand(initCmd(v))
	rootCmd.AddCommand(versionCmd())
}

// setup loads the configuration and the logger shared by the network commands.
func setup(v *viper.Viper) (config.Config, zerolog.Logger, chain.Options, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return config.Config{}, zerolog.Nop(), chain.Options{}, err
	}
	log := logger.Init(cfg)
	opts, err := chain.OptionsFromConfig(cfg)
	if err != nil {
		return config.Config{}, zerolog.Nop(), chain.Options{}, err
	}
	return cfg, log, opts, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// closeConn closes a connection whose results were already delivered, so a
// failure is only worth a warning.
func closeConn(conn io.Closer, log zerolog.Logger) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close connection")
	}
}

func addCallDataFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagCallData, "", "Call data as hex")
	cmd.Flags().String(flagCallDataFile, "", "File holding the call data as hex text or raw bytes")
}

func submitCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Sign a call and submit it as an extrinsic",
		Long: `
Sign a SCALE-encoded runtime call with the given credential and submit it.

In watch mode (default) the extrinsic is followed until it is finalized and
the dispatch result is reported. In submit mode the command returns once the
node has accepted the extrinsic into its pool.

Exit status is 0 on success, 2 when the finalized extrinsic failed to
dispatch and 1 on any other failure.

Examples:
  subskribinto submit --keystore alice.json --call-data 0x0000082a2a
  subskribinto submit -e wss://kreivo.io --keystore alice.json --call-data-file call.hex --mode submit
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, opts, err := setup(v)
			if err != nil {
				return err
			}

			// Credential and call data are gathered before any network access.
			src, err := credentialFromFlags(cmd, v)
			if err != nil {
				return err
			}
			callData, err := readCallData(cmd)
			if err != nil {
				return err
			}

			client, err := core.NewClient(core.Config{
				Dialer: core.ChainDialer(opts, log),
				Logger: log,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			outcome, err := client.SignAndSubmit(ctx, core.Request{
				Credential: src,
				CallData:   callData,
				Endpoint:   cfg.Endpoint,
				Mode:       cfg.SubmitMode,
			})
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), outcome)
			if f := outcome.Finalized; f != nil && !f.Dispatch.Success {
				return cerrors.NewDispatchFailedError("", "extrinsic failed: "+f.Dispatch.Error)
			}
			return nil
		},
	}

	cmd.Flags().String(flagKeystore, "", "Path to a JSON keystore file")
	cmd.Flags().String(flagPassphrase, "", "Keystore passphrase (prompted when omitted)")
	cmd.Flags().String(flagPhrase, "", "Mnemonic phrase")
	cmd.Flags().String(flagDerivePath, "", "Derivation path for --phrase")
	cmd.Flags().String(flagSeed, "", "Raw 32-byte secret seed as hex")
	addCallDataFlags(cmd)
	cmd.Flags().String(flagMode, string(config.SubmitModeWatch), "Submit mode (watch|submit)")
	cmd.Flags().Uint64(flagMortality, 64, "Mortality period in blocks, 0 for immortal")
	cmd.Flags().String(flagTip, "0", "Tip in the chain's smallest unit")
	cmd.Flags().Int(flagSS58Prefix, -1, "SS58 prefix override, -1 reads it from the runtime")

	return cmd
}

func printOutcome(w io.Writer, outcome *tracker.Outcome) {
	fmt.Fprintf(w, "Transaction: %s\n", outcome.Hash.Hex())
	f := outcome.Finalized
	if f == nil {
		fmt.Fprintln(w, "Status:      submitted")
		return
	}
	fmt.Fprintf(w, "Block:       #%d (%s)\n", f.BlockNumber, f.BlockHash.Hex())
	fmt.Fprintf(w, "Index:       %d\n", f.ExtrinsicIndex)
	if f.Dispatch.Success {
		fmt.Fprintln(w, "Status:      success")
	} else {
		fmt.Fprintf(w, "Status:      failed (%s)\n", f.Dispatch.Error)
	}
	if len(f.Dispatch.Events) > 0 {
		fmt.Fprintf(w, "Events:      %s\n", strings.Join(f.Dispatch.Events, ", "))
	}
}

func decodeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a call against the runtime metadata of a node",
		Long: `
Connect to a node, decode the given call data with its runtime metadata and
print the call as JSON. Nothing is signed or submitted.

Examples:
  subskribinto decode -e wss://kreivo.io --call-data 0x0000082a2a
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, opts, err := setup(v)
			if err != nil {
				return err
			}
			callData, err := readCallData(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			conn, err := chain.Open(ctx, cfg.Endpoint, opts, log)
			if err != nil {
				return err
			}
			defer closeConn(conn, log)

			call, err := conn.MaterializeCall(callData)
			if err != nil {
				return err
			}
			out, err := call.Decoded.MarshalJSON()
			if err != nil {
				return cerrors.NewInternalError(conn.ChainName(), "failed to render call", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	addCallDataFlags(cmd)
	cmd.Flags().Int(flagSS58Prefix, -1, "SS58 prefix for rendered accounts, -1 reads it from the runtime")

	return cmd
}

func initCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the home directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			home := v.GetString(flagHome)
			cfg.NodeHome = home
			if v.IsSet(flagEndpoint) {
				cfg.Endpoint = v.GetString(flagEndpoint)
			}
			if err := config.Save(cfg, home); err != nil {
				return cerrors.WrapChainError(err, cerrors.ErrCodeConfig, "", "failed to save config")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", home)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print subskribinto version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Name:       %s\n", "subskribinto")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", Commit)
		},
	}
}
