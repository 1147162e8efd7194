package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	tierswap "github.com/redesblock/tierswap"
	"github.com/redesblock/tierswap/core/allowance"
	"github.com/redesblock/tierswap/core/api/auth"
	"github.com/redesblock/tierswap/core/node"
	"github.com/spf13/cobra"
)

func (c *command) initStartCmd() (err error) {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a tierswap node",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			logger, err := newLogger(cmd, c.config.GetString(optionNameVerbosity))
			if err != nil {
				return fmt.Errorf("new logger: %w", err)
			}

			deployment, err := c.deployment()
			if err != nil {
				return err
			}

			var ledgerAddress common.Address
			if a := c.config.GetString(optionNameLedgerAddress); a != "" {
				if ledgerAddress, err = parseAddress(optionNameLedgerAddress, a); err != nil {
					return err
				}
			}

			debugAPIAddr := c.config.GetString(optionNameDebugAPIAddr)
			if !c.config.GetBool(optionNameDebugAPIEnable) {
				debugAPIAddr = ""
			}

			logger.Infof("version: %v", tierswap.Version)

			b, err := node.NewTierswap(node.Options{
				DataDir:             c.config.GetString(optionNameDataDir),
				APIAddr:             c.config.GetString(optionNameAPIAddr),
				DebugAPIAddr:        debugAPIAddr,
				DevMode:             c.config.GetBool(optionNameDevMode),
				CORSAllowedOrigins:  splitList(c.config.GetStringSlice(optionCORSAllowedOrigins)),
				Logger:              logger,
				TracingEnabled:      c.config.GetBool(optionNameTracingEnabled),
				TracingEndpoint:     c.config.GetString(optionNameTracingEndpoint),
				TracingServiceName:  c.config.GetString(optionNameTracingServiceName),
				LedgerAddress:       ledgerAddress,
				Deployment:          deployment,
				AllowanceCacheSize:  c.config.GetInt(optionNameAllowanceCacheSize),
				CallerMaxSkew:       c.config.GetDuration(optionNameCallerMaxSkew),
				DepositRateInterval: c.config.GetDuration(optionNameDepositRate),
				DepositRateBurst:    c.config.GetInt(optionNameDepositBurst),
			})
			if err != nil {
				return err
			}

			// Wait for termination or interrupt signals.
			// We want to clean up things at the end.
			interruptChannel := make(chan os.Signal, 1)
			signal.Notify(interruptChannel, syscall.SIGINT, syscall.SIGTERM)

			// Block main goroutine until it is interrupted
			sig := <-interruptChannel

			logger.Debugf("received signal: %v", sig)
			logger.Info("shutting down")

			// Shutdown
			done := make(chan struct{})
			go func() {
				defer close(done)

				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()

				if err := b.Shutdown(ctx); err != nil {
					logger.Errorf("shutdown: %v", err)
				}
			}()

			// If shutdown function is blocking too long,
			// allow process termination by receiving another signal.
			select {
			case sig := <-interruptChannel:
				logger.Debugf("received signal: %v", sig)
			case <-done:
			}

			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setAllFlags(cmd)
	c.root.AddCommand(cmd)
	return nil
}

func (c *command) setAllFlags(cmd *cobra.Command) {
	cmd.Flags().String(optionNameDataDir, filepath.Join(c.homeDir, ".tierswap"), "data directory, empty keeps state in memory")
	cmd.Flags().String(optionNameAPIAddr, ":1833", "HTTP API listen address")
	cmd.Flags().Bool(optionNameDebugAPIEnable, false, "enable debug HTTP API")
	cmd.Flags().String(optionNameDebugAPIAddr, ":1835", "debug HTTP API listen address")
	cmd.Flags().Bool(optionNameDevMode, false, "enable token mint and approve endpoints on the debug API")
	cmd.Flags().StringSlice(optionCORSAllowedOrigins, []string{}, "origins with CORS headers enabled")
	cmd.Flags().String(optionNameVerbosity, "info", "log verbosity level 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace")
	cmd.Flags().Bool(optionNameTracingEnabled, false, "enable tracing")
	cmd.Flags().String(optionNameTracingEndpoint, "127.0.0.1:6831", "endpoint to send tracing data")
	cmd.Flags().String(optionNameTracingServiceName, "tierswap", "service name identifier for tracing")
	cmd.Flags().String(optionNameOwner, "", "owner address")
	cmd.Flags().String(optionNameValidator, "", "validator address signing allowances")
	cmd.Flags().String(optionNameLedgerAddress, "", "address holding deposited tokens, derived from the owner if empty")
	cmd.Flags().Uint(optionNameTokenDecimals, 18, "decimals of the deposit token")
	cmd.Flags().StringSlice(optionNameSwapRatios, []string{"1", "1", "1"}, "comma separated deposit units per credited unit of each tier")
	cmd.Flags().StringSlice(optionNameSwapEnabled, []string{"true", "false", "false"}, "comma separated enabled flags of each tier")
	cmd.Flags().String(optionNameMinSwapAmount, "", "smallest deposit in whole tokens")
	cmd.Flags().String(optionNameMaxSwapAmount, "", "largest deposit in whole tokens")
	cmd.Flags().Int(optionNameAllowanceCacheSize, allowance.DefaultCacheSize, "number of allowances kept in memory")
	cmd.Flags().Duration(optionNameCallerMaxSkew, auth.DefaultMaxSkew, "accepted clock difference of signed administrative requests")
	cmd.Flags().Duration(optionNameDepositRate, 0, "interval at which a receiver regains one deposit, 0 disables the limit")
	cmd.Flags().Int(optionNameDepositBurst, 1, "deposits a receiver may make at once")
}

