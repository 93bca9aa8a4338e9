package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseRule() *NotificationRule {
	return &NotificationRule{
		RuleID:   "r1",
		UserID:   "u1",
		Category: "risk",
		MinLevel: LevelWarning,
		Enabled:  true,
		Channels: map[ChannelKind]bool{ChannelEmail: true},
	}
}

func TestRule_MatchesCategory(t *testing.T) {
	r := baseRule()
	assert.True(t, r.MatchesCategory("risk"))
	assert.False(t, r.MatchesCategory("trade"))

	r.Category = CategoryAll
	assert.True(t, r.MatchesCategory("trade"))
}

func TestRule_MatchesMessage_LevelFloor(t *testing.T) {
	r := baseRule()
	assert.False(t, r.MatchesMessage(NewMessage(LevelInfo, "t", "b")))
	assert.True(t, r.MatchesMessage(NewMessage(LevelWarning, "t", "b")))
	assert.True(t, r.MatchesMessage(NewMessage(LevelCritical, "t", "b")))
}

func TestRule_MatchesMessage_ExchangeFilter(t *testing.T) {
	r := baseRule()
	r.ExchangeFilters = []string{"binance", "kraken"}

	m := NewMessage(LevelError, "t", "b")
	m.ExchangeID = "kraken"
	assert.True(t, r.MatchesMessage(m))

	m.ExchangeID = "coinbase"
	assert.False(t, r.MatchesMessage(m))
}

func TestRule_MatchesMessage_Keywords(t *testing.T) {
	r := baseRule()
	r.KeywordFilters = []string{"liquidation", "margin"}

	assert.True(t, r.MatchesMessage(NewMessage(LevelError, "Margin call", "act now")),
		"keyword match is case-insensitive")
	assert.False(t, r.MatchesMessage(NewMessage(LevelError, "Order filled", "all good")))

	// Exclusion wins over inclusion.
	r.ExcludeKeywords = []string{"testnet"}
	assert.False(t, r.MatchesMessage(NewMessage(LevelError, "Margin call", "on TESTNET")))
}

func TestRule_Clone_Independent(t *testing.T) {
	r := baseRule()
	r.KeywordFilters = []string{"a"}

	cp := r.Clone()
	cp.Channels[ChannelPush] = true
	cp.KeywordFilters[0] = "b"

	assert.False(t, r.Channels[ChannelPush])
	assert.Equal(t, "a", r.KeywordFilters[0])
}
