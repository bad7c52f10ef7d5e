package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, lvl)

	lvl, err = ParseLevel("loud")
	require.Error(t, err)
	assert.Equal(t, log.LevelInfo, lvl)
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, log.LevelInfo, "json")
	require.NoError(t, err)

	logger := log.NewLogger(h)
	logger.Debug("hidden")
	logger.Info("Counter transaction confirmed", "block", 7)

	assert.NotContains(t, buf.String(), "hidden")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Contains(t, buf.String(), "Counter transaction confirmed")
	assert.EqualValues(t, 7, line["block"])
}

func TestUnknownFormat(t *testing.T) {
	_, err := NewHandler(&bytes.Buffer{}, log.LevelInfo, "xml")
	require.Error(t, err)
}
