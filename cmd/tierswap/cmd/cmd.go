package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/redesblock/tierswap/core/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	optionNameDataDir            = "data-dir"
	optionNameAPIAddr            = "api-addr"
	optionNameDebugAPIEnable     = "debug-api-enable"
	optionNameDebugAPIAddr       = "debug-api-addr"
	optionNameDevMode            = "dev-mode"
	optionCORSAllowedOrigins     = "cors-allowed-origins"
	optionNameVerbosity          = "verbosity"
	optionNameTracingEnabled     = "tracing-enable"
	optionNameTracingEndpoint    = "tracing-endpoint"
	optionNameTracingServiceName = "tracing-service-name"
	optionNameOwner              = "owner"
	optionNameValidator          = "validator"
	optionNameLedgerAddress      = "ledger-address"
	optionNameTokenDecimals      = "token-decimals"
	optionNameSwapRatios         = "swap-ratios"
	optionNameSwapEnabled        = "swap-enabled"
	optionNameMinSwapAmount      = "min-swap-amount-per-tx"
	optionNameMaxSwapAmount      = "max-swap-amount-per-tx"
	optionNameAllowanceCacheSize = "allowance-cache-size"
	optionNameCallerMaxSkew      = "caller-max-skew"
	optionNameDepositRate        = "deposit-rate-interval"
	optionNameDepositBurst       = "deposit-rate-burst"
	optionNameKeystoreDir        = "keystore-dir"
	optionNamePassword           = "password"
	optionNamePasswordFile       = "password-file"
	optionNameValidatorKey       = "validator-key"
	optionNameAccount            = "account"
	optionNameAmounts            = "amounts"
)

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfgFile string
	homeDir string
}

type option func(*command)

func newCommand(opts ...option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "tierswap",
			Short:         "Tiered swap allowance ledger",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return c.initConfig()
			},
		},
	}

	for _, o := range opts {
		o(c)
	}

	// Find home directory.
	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()

	if err := c.initStartCmd(); err != nil {
		return nil, err
	}

	if err := c.initSignCmd(); err != nil {
		return nil, err
	}

	c.initVersionCmd()

	return c, nil
}

func (c *command) Execute() (err error) {
	return c.root.Execute()
}

// Execute parses command line arguments and runs appropriate functions.
func Execute() (err error) {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	globalFlags := c.root.PersistentFlags()
	globalFlags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.tierswap.yaml)")
}

func (c *command) initConfig() (err error) {
	config := viper.New()
	configName := ".tierswap"
	if c.cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(c.cfgFile)
	} else {
		// Search config in home directory with name ".tierswap" (without extension).
		config.AddConfigPath(c.homeDir)
		config.SetConfigName(configName)
	}

	// Environment
	config.SetEnvPrefix("tierswap")
	config.AutomaticEnv() // read in environment variables that match
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if c.homeDir != "" && c.cfgFile == "" {
		c.cfgFile = filepath.Join(c.homeDir, configName+".yaml")
	}

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}
	c.config = config
	return nil
}

func (c *command) setHomeDir() (err error) {
	if c.homeDir != "" {
		return
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = dir
	return nil
}

func newLogger(cmd *cobra.Command, verbosity string) (logging.Logger, error) {
	var logger logging.Logger
	switch v := strings.ToLower(verbosity); v {
	case "0", "silent":
		logger = logging.New(io.Discard, 0)
	case "1", "error":
		logger = logging.New(cmd.OutOrStdout(), logrus.ErrorLevel)
	case "2", "warn":
		logger = logging.New(cmd.OutOrStdout(), logrus.WarnLevel)
	case "3", "info":
		logger = logging.New(cmd.OutOrStdout(), logrus.InfoLevel)
	case "4", "debug":
		logger = logging.New(cmd.OutOrStdout(), logrus.DebugLevel)
	case "5", "trace":
		logger = logging.New(cmd.OutOrStdout(), logrus.TraceLevel)
	default:
		return nil, fmt.Errorf("unknown verbosity level %q", v)
	}
	return logger, nil
}

func WithCfgFile(f string) func(c *command) {
	return func(c *command) {
		c.cfgFile = f
	}
}

func WithHomeDir(dir string) func(c *command) {
	return func(c *command) {
		c.homeDir = dir
	}
}

func WithArgs(a ...string) func(c *command) {
	return func(c *command) {
		c.root.SetArgs(a)
	}
}

func WithInput(r io.Reader) func(c *command) {
	return func(c *command) {
		c.root.SetIn(r)
	}
}

func WithOutput(w io.Writer) func(c *command) {
	return func(c *command) {
		c.root.SetOut(w)
	}
}

func WithErrorOutput(w io.Writer) func(c *command) {
	return func(c *command) {
		c.root.SetErr(w)
	}
}
