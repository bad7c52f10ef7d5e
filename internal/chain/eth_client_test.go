package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEthClientRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  EthClientConfig
		want string
	}{
		{name: "no rpc", cfg: EthClientConfig{ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}, want: "rpc url"},
		{name: "bad address", cfg: EthClientConfig{RPCURL: "http://127.0.0.1:1", ContractAddress: "counter"}, want: "invalid contract address"},
		{name: "bad key", cfg: EthClientConfig{RPCURL: "http://127.0.0.1:1", ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3", PrivateKeyHex: "0xnothex"}, want: "parse private key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEthClient(ctx, tc.cfg)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParsePrivateKeyAcceptsPrefix(t *testing.T) {
	const hardhatKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	a, err := parsePrivateKey("0x" + hardhatKey)
	require.NoError(t, err)
	b, err := parsePrivateKey(" " + hardhatKey + "\n")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestReadOnlyClientRefusesSubmit(t *testing.T) {
	c := &EthClient{}
	intent, err := NewIntent(OpInc, nil)
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), intent)
	require.ErrorIs(t, err, ErrReadOnly)

	var chainErr *Error
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, PathWrite, chainErr.Path)
}
