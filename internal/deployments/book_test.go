package deployments

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sepoliaAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	localAddr   = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func writeDeployment(t *testing.T, root, dir, body string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "deployed_addresses.json"), []byte(body), 0o600))
}

func TestScanAndBookRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeDeployment(t, root, "chain-11155111", `{"CounterModule#Counter":"`+sepoliaAddr+`"}`)
	writeDeployment(t, root, "chain-31337", `{"CounterModule#Counter":"`+localAddr+`"}`)
	writeDeployment(t, root, "chain-5", `{"OtherModule#Thing":"`+localAddr+`"}`)
	writeDeployment(t, root, "chain-42", `not json`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scratch"), 0o755))

	deps, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, Deployment{Network: "localhost", ChainID: 31337, Address: localAddr}, deps[0])
	assert.Equal(t, "sepolia", deps[1].Network)

	path := filepath.Join(t.TempDir(), "deployments.json")
	require.NoError(t, NewBook(deps).Write(path))

	book, err := LoadBook(path)
	require.NoError(t, err)
	addr, ok := book.Address("sepolia")
	require.True(t, ok)
	assert.Equal(t, sepoliaAddr, addr)
	_, ok = book.Address("mainnet")
	assert.False(t, ok)
}

func TestScanEmpty(t *testing.T) {
	_, err := Scan(t.TempDir())
	require.ErrorIs(t, err, ErrNoDeployments)

	_, err = Scan(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestNetworks(t *testing.T) {
	n, err := LookupNetwork("localhost")
	require.NoError(t, err)
	assert.Equal(t, int64(31337), n.ChainID)

	_, err = LookupNetwork("goerli")
	require.Error(t, err)

	assert.Equal(t, "mainnet", NetworkName(1))
	assert.Equal(t, "chain-10", NetworkName(10))
}
