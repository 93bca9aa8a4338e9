package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_JSONRoundTrip(t *testing.T) {
	m := NewMessage(LevelError, "Margin call", "Equity below maintenance")
	m.ExchangeID = "binance"
	m.Metadata["symbol"] = "BTC-USDT"
	m.Acknowledge()

	data, err := m.ToJSON()
	require.NoError(t, err)

	got, err := MessageFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMessage_JSONWireShape(t *testing.T) {
	m := NewMessage(LevelCritical, "t", "b")

	data, err := m.ToJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	// level rides as an integer, timestamp as milliseconds.
	assert.Equal(t, float64(3), raw["level"])
	assert.Equal(t, float64(m.Timestamp), raw["timestamp"])
}

func TestMessageFromJSON_TolerantDefaults(t *testing.T) {
	got, err := MessageFromJSON([]byte(`{"id":"abc","level":1,"title":"t","body":"b","timestamp":1700000000000}`))
	require.NoError(t, err)

	assert.NotNil(t, got.Metadata)
	assert.Empty(t, got.Metadata)
	assert.False(t, got.Acknowledged)
	assert.Equal(t, LevelWarning, got.Level)
}

func TestMessageFromJSON_RejectsInvalidLevel(t *testing.T) {
	_, err := MessageFromJSON([]byte(`{"id":"abc","level":9,"title":"t","body":"b"}`))
	require.Error(t, err)

	_, err = MessageFromJSON([]byte(`{"id":"abc","level":-1}`))
	require.Error(t, err)
}

func TestLevel_Strings(t *testing.T) {
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "critical", LevelCritical.String())
	assert.True(t, LevelWarning.Valid())
	assert.False(t, Level(42).Valid())
}
