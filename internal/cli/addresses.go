package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"counterbridge/internal/deployments"
)

type addressesOptions struct {
	dir    string
	output string
}

// NewAddressesCommand collects ignition deployment addresses into a deployments book.
func NewAddressesCommand(_ *RootOptions) *cobra.Command {
	opts := &addressesOptions{}

	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Collect deployed Counter addresses into deployments.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := deployments.Scan(opts.dir)
			if err != nil {
				return err
			}
			for _, d := range deps {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d %s\n", d.Network, d.ChainID, d.Address)
			}
			if err := deployments.NewBook(deps).Write(opts.output); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "ignition/deployments", "ignition deployments directory")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "deployments.json", "deployments book to write")

	return cmd
}
