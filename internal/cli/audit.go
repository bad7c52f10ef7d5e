package cli

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"counterbridge/internal/audit"
	"counterbridge/internal/deployments"
)

// ErrUnbalanced is returned when the counter disagrees with its events.
var ErrUnbalanced = errors.New("counter does not match its event history")

type auditOptions struct {
	rpcURL      string
	contract    string
	network     string
	deployments string
	fromBlock   uint64
	baseline    string
}

// NewAuditCommand checks the counter value against its Increment and Decrement events.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify the counter equals the sum of its events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.rpcURL, "rpc-url", firstEnv("RPC_URL", "SEPOLIA_RPC_URL"), "JSON-RPC endpoint")
	cmd.Flags().StringVar(&opts.contract, "contract", os.Getenv("CONTRACT_ADDRESS"), "Counter contract address")
	cmd.Flags().StringVar(&opts.network, "network", firstEnv("NETWORK"), "network used to look up the contract in the deployments book")
	cmd.Flags().StringVar(&opts.deployments, "deployments", "deployments.json", "deployments book")
	cmd.Flags().Uint64Var(&opts.fromBlock, "from-block", 0, "first block to sum events from")
	cmd.Flags().StringVar(&opts.baseline, "baseline", "0", "counter value before --from-block")

	return cmd
}

func runAudit(cmd *cobra.Command, rootOpts *RootOptions, opts *auditOptions) error {
	if opts.rpcURL == "" {
		return errors.New("--rpc-url or RPC_URL is required")
	}
	baseline, ok := new(big.Int).SetString(opts.baseline, 10)
	if !ok || baseline.Sign() < 0 {
		return fmt.Errorf("invalid baseline %q", opts.baseline)
	}
	contract, err := resolveContract(opts)
	if err != nil {
		return err
	}

	source, closeFn, err := rootOpts.Dial(cmd.Context(), opts.rpcURL, contract)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer closeFn()

	report, err := audit.Verify(cmd.Context(), source, opts.fromBlock, baseline)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report)
	if !report.Balanced() {
		return ErrUnbalanced
	}
	return nil
}

func resolveContract(opts *auditOptions) (string, error) {
	if opts.contract != "" {
		if !common.IsHexAddress(opts.contract) {
			return "", fmt.Errorf("invalid contract address %q", opts.contract)
		}
		return opts.contract, nil
	}
	network := opts.network
	if network == "" {
		network = "sepolia"
	}
	book, err := deployments.LoadBook(opts.deployments)
	if err != nil {
		return "", fmt.Errorf("no --contract given and no deployments book: %w", err)
	}
	addr, ok := book.Address(network)
	if !ok {
		return "", fmt.Errorf("no %s entry in %s", network, opts.deployments)
	}
	return addr, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
