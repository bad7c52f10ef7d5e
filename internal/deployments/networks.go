package deployments

import "fmt"

// Network is a supported ledger network.
type Network struct {
	Name    string
	ChainID int64
}

var networks = []Network{
	{Name: "sepolia", ChainID: 11155111},
	{Name: "localhost", ChainID: 31337},
	{Name: "mainnet", ChainID: 1},
}

// LookupNetwork resolves a network by name.
func LookupNetwork(name string) (Network, error) {
	for _, n := range networks {
		if n.Name == name {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("unsupported network %q", name)
}

// NetworkName maps a chain id to its network name, or "chain-<id>" when unknown.
func NetworkName(chainID int64) string {
	for _, n := range networks {
		if n.ChainID == chainID {
			return n.Name
		}
	}
	return fmt.Sprintf("chain-%d", chainID)
}
