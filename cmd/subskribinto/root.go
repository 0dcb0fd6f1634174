package main

import (
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/virto-network/subskribinto/extrinsicClient/config"
	"github.com/virto-network/subskribinto/extrinsicClient/constant"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
)

const (
	flagHome       = "home"
	flagEndpoint   = "endpoint"
	flagLogLevel   = "log-level"
	flagLogFormat  = "log-format"
	flagMode       = "mode"
	flagMortality  = "mortality"
	flagTip        = "tip"
	flagSS58Prefix = "ss58-prefix"
	flagPassphrase = "passphrase"
)

// newViper resolves settings from flags and SUBSKRIBINTO_* environment
// variables, flags first.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func NewRootCmd() *cobra.Command {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:           "subskribinto",
		Short:         "Sign and submit extrinsics to Substrate chains",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagHome, constant.DefaultNodeHome, "Home directory holding config/"+constant.ConfigFileName)
	flags.StringP(flagEndpoint, "e", "", "Websocket RPC endpoint of the node")
	flags.Int(flagLogLevel, 1, "Log level (0 = debug .. 5 = panic)")
	flags.String(flagLogFormat, "console", "Log format (console|json)")

	InitRootCmd(rootCmd, v)

	return rootCmd
}

// loadConfig reads the config file under --home, falling back to the embedded
// defaults when there is none, and overlays flags and environment variables.
func loadConfig(v *viper.Viper) (config.Config, error) {
	home := v.GetString(flagHome)
	cfg, err := config.Load(home)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, cerrors.WrapChainError(err, cerrors.ErrCodeConfig, "", "failed to load config")
		}
		def, defErr := config.LoadDefaultConfig()
		if defErr != nil {
			return config.Config{}, cerrors.WrapChainError(defErr, cerrors.ErrCodeConfig, "", "failed to load default config")
		}
		cfg = *def
	}
	cfg.NodeHome = home

	if v.IsSet(flagEndpoint) {
		cfg.Endpoint = v.GetString(flagEndpoint)
	}
	if v.IsSet(flagLogLevel) {
		cfg.LogLevel = v.GetInt(flagLogLevel)
	}
	if v.IsSet(flagLogFormat) {
		cfg.LogFormat = v.GetString(flagLogFormat)
	}
	if v.IsSet(flagMode) {
		cfg.SubmitMode = config.SubmitMode(v.GetString(flagMode))
	}
	if v.IsSet(flagMortality) {
		cfg.MortalityPeriod = v.GetUint64(flagMortality)
	}
	if v.IsSet(flagTip) {
		cfg.Tip = v.GetString(flagTip)
	}
	if v.IsSet(flagSS58Prefix) {
		cfg.SS58Prefix = v.GetInt(flagSS58Prefix)
	}

	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, cerrors.WrapChainError(err, cerrors.ErrCodeConfig, "", "invalid configuration")
	}
	return cfg, nil
}
