// Package cli implements the counterctl operator commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"counterbridge/internal/chain"
	"counterbridge/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel  string
	LogFormat string

	// Dial opens a read-only event source. Tests replace it with a fake ledger.
	Dial func(ctx context.Context, rpcURL, contract string) (chain.EventSource, func(), error)
}

// NewRootCommand creates the counterctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Dial: dialEth})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counterctl",
		Short: "Operator tooling for the counter bridge",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(opts.LogLevel, opts.LogFormat); err != nil {
				return fmt.Errorf("logging: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (trace|debug|info|warn|error|crit)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "terminal", "log format (terminal|logfmt|json)")

	cmd.AddCommand(NewAddressesCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

func dialEth(ctx context.Context, rpcURL, contract string) (chain.EventSource, func(), error) {
	client, err := chain.NewEthClient(ctx, chain.EthClientConfig{
		RPCURL:          rpcURL,
		ContractAddress: contract,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}
