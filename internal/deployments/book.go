// Package deployments keeps track of where Counter is deployed on each network.
package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// FutureID is the key ignition uses for the Counter deployment.
const FutureID = "CounterModule#Counter"

var ErrNoDeployments = errors.New("no deployed contracts found")

// Deployment is one Counter instance.
type Deployment struct {
	Network string
	ChainID int64
	Address string
}

// Book is the deployments.json layout: {"counter": {"<network>": "<address>"}}.
type Book struct {
	Counter map[string]string `json:"counter"`
}

// Address returns the Counter address recorded for network.
func (b *Book) Address(network string) (string, bool) {
	if b == nil {
		return "", false
	}
	addr, ok := b.Counter[network]
	return addr, ok && addr != ""
}

// Scan reads chain-<id>/deployed_addresses.json entries below an ignition deployments dir.
// Unreadable entries are skipped with a warning.
func Scan(dir string) ([]Deployment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read deployments dir: %w", err)
	}

	var out []Deployment
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "chain-") {
			continue
		}
		chainID, err := strconv.ParseInt(strings.TrimPrefix(entry.Name(), "chain-"), 10, 64)
		if err != nil {
			log.Warn("Skipping deployment directory", "dir", entry.Name(), "err", err)
			continue
		}
		network := NetworkName(chainID)

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name(), "deployed_addresses.json"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Warn("Could not read deployment", "network", network, "err", err)
			continue
		}
		var addresses map[string]string
		if err := json.Unmarshal(raw, &addresses); err != nil {
			log.Warn("Could not read deployment", "network", network, "err", err)
			continue
		}
		addr, ok := addresses[FutureID]
		if !ok || !common.IsHexAddress(addr) {
			continue
		}
		out = append(out, Deployment{Network: network, ChainID: chainID, Address: addr})
	}

	if len(out) == 0 {
		return nil, ErrNoDeployments
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

// NewBook indexes deployments by network name.
func NewBook(deps []Deployment) *Book {
	book := &Book{Counter: make(map[string]string, len(deps))}
	for _, d := range deps {
		book.Counter[d.Network] = d.Address
	}
	return book
}

func LoadBook(path string) (*Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var book Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &book, nil
}

func (b *Book) Write(path string) error {
	blob, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}
