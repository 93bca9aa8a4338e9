package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// noonUTC is outside any quiet window used below.
var noonUTC = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func evalProfile() *model.UserProfile {
	return &model.UserProfile{
		UserID:        "u1",
		GlobalEnabled: true,
		ChannelEnabled: map[model.ChannelKind]bool{
			model.ChannelEmail: true,
			model.ChannelPush:  true,
		},
	}
}

func evalMessage(lvl model.Level) *model.NotificationMessage {
	return &model.NotificationMessage{
		ID:        "m1",
		Level:     lvl,
		Title:     "Margin call",
		Body:      "position at risk",
		Timestamp: noonUTC.UnixMilli(),
	}
}

func TestEvaluate_GloballyDisabled(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.GlobalEnabled = false

	d := e.Evaluate(p, evalMessage(model.LevelCritical), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropGloballyDisabled, d.Reason)
}

func TestEvaluate_ChannelDisabled(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))

	d := e.Evaluate(evalProfile(), evalMessage(model.LevelCritical), "risk", model.ChannelSMS)

	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropChannelDisabled, d.Reason)
}

func TestEvaluate_QuietHoursDropsBelowCritical(t *testing.T) {
	night := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	e := NewEvaluator(fixedClock(night))
	p := evalProfile()
	p.QuietModeEnabled = true
	p.QuietStart = "22:00"
	p.QuietEnd = "08:00"

	d := e.Evaluate(p, evalMessage(model.LevelError), "risk", model.ChannelEmail)
	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropQuietHours, d.Reason)
}

func TestEvaluate_CriticalBypassesQuietHours(t *testing.T) {
	night := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	e := NewEvaluator(fixedClock(night))
	p := evalProfile()
	p.QuietModeEnabled = true
	p.QuietStart = "22:00"
	p.QuietEnd = "08:00"

	d := e.Evaluate(p, evalMessage(model.LevelCritical), "risk", model.ChannelEmail)
	assert.Equal(t, OutcomeAllow, d.Outcome)
}

func TestEvaluate_MatchedRuleImmediate(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{{
		RuleID:    "r1",
		Category:  "risk",
		MinLevel:  model.LevelInfo,
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqImmediate,
		Enabled:   true,
	}}

	d := e.Evaluate(p, evalMessage(model.LevelInfo), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeAllow, d.Outcome)
	require.NotNil(t, d.Rule)
	assert.Equal(t, "r1", d.Rule.RuleID)
}

func TestEvaluate_MatchedRuleBatchedCarriesDeadline(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{{
		RuleID:    "r1",
		Category:  "trade",
		MinLevel:  model.LevelInfo,
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqBatched15m,
		Enabled:   true,
	}}

	d := e.Evaluate(p, evalMessage(model.LevelInfo), "trade", model.ChannelEmail)

	assert.Equal(t, OutcomeBatch, d.Outcome)
	assert.Equal(t, noonUTC.Add(15*time.Minute), d.Deadline)
}

func TestEvaluate_MatchedRuleDisabledFrequency(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{{
		RuleID:    "r1",
		Category:  "risk",
		MinLevel:  model.LevelInfo,
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqDisabled,
		Enabled:   true,
	}}

	d := e.Evaluate(p, evalMessage(model.LevelError), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropRuleDisabled, d.Reason)
	require.NotNil(t, d.Rule)
}

func TestEvaluate_ExactCategoryBeatsWildcard(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{
		{
			RuleID:    "wildcard",
			Category:  model.CategoryAll,
			MinLevel:  model.LevelInfo,
			Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
			Frequency: model.FreqDisabled,
			Enabled:   true,
			UpdatedAt: noonUTC, // newer, but less specific
		},
		{
			RuleID:    "exact",
			Category:  "risk",
			MinLevel:  model.LevelInfo,
			Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
			Frequency: model.FreqImmediate,
			Enabled:   true,
			UpdatedAt: noonUTC.Add(-time.Hour),
		},
	}

	d := e.Evaluate(p, evalMessage(model.LevelInfo), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.Equal(t, "exact", d.Rule.RuleID)
}

func TestEvaluate_TieBreaksOnUpdatedAt(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{
		{
			RuleID:    "older",
			Category:  "risk",
			MinLevel:  model.LevelInfo,
			Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
			Frequency: model.FreqDisabled,
			Enabled:   true,
			UpdatedAt: noonUTC.Add(-2 * time.Hour),
		},
		{
			RuleID:    "newer",
			Category:  "risk",
			MinLevel:  model.LevelInfo,
			Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
			Frequency: model.FreqImmediate,
			Enabled:   true,
			UpdatedAt: noonUTC.Add(-time.Hour),
		},
	}

	d := e.Evaluate(p, evalMessage(model.LevelInfo), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.Equal(t, "newer", d.Rule.RuleID)
}

func TestEvaluate_DisabledRuleDoesNotMatch(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{{
		RuleID:    "off",
		Category:  "risk",
		MinLevel:  model.LevelInfo,
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqImmediate,
		Enabled:   false,
	}}

	// Falls through to default policy: Info drops, Warning delivers.
	d := e.Evaluate(p, evalMessage(model.LevelInfo), "risk", model.ChannelEmail)
	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropNoRule, d.Reason)
}

func TestEvaluate_RuleQuietWindowSkipsRule(t *testing.T) {
	night := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	e := NewEvaluator(fixedClock(night))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{{
		RuleID:          "scoped",
		Category:        "risk",
		MinLevel:        model.LevelInfo,
		Channels:        map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency:       model.FreqDisabled,
		Enabled:         true,
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "08:00",
	}}

	// The rule is out of scope at 23:00 so the default policy decides.
	d := e.Evaluate(p, evalMessage(model.LevelError), "risk", model.ChannelEmail)
	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.Nil(t, d.Rule)
}

func TestEvaluate_RuleQuietDaySkipsRule(t *testing.T) {
	// 2026-03-08 is a Sunday.
	sunday := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	e := NewEvaluator(fixedClock(sunday))
	p := evalProfile()
	p.Rules = []*model.NotificationRule{{
		RuleID:    "weekday-only",
		Category:  "risk",
		MinLevel:  model.LevelInfo,
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqImmediate,
		Enabled:   true,
		QuietDays: []time.Weekday{time.Saturday, time.Sunday},
	}}

	d := e.Evaluate(p, evalMessage(model.LevelInfo), "risk", model.ChannelEmail)
	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropNoRule, d.Reason)
}

func TestEvaluate_DefaultPolicy(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()

	cases := []struct {
		level model.Level
		want  Outcome
	}{
		{model.LevelInfo, OutcomeDrop},
		{model.LevelWarning, OutcomeAllow},
		{model.LevelError, OutcomeAllow},
		{model.LevelCritical, OutcomeAllow},
	}
	for _, tc := range cases {
		d := e.Evaluate(p, evalMessage(tc.level), "system", model.ChannelEmail)
		assert.Equal(t, tc.want, d.Outcome, "level %s", tc.level)
	}
}

// Every evaluation yields exactly one of the three outcomes; the zero
// Outcome never escapes.
func TestEvaluate_AlwaysDecides(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	for _, ch := range model.AllChannels {
		for lvl := model.LevelInfo; lvl <= model.LevelCritical; lvl++ {
			d := e.Evaluate(p, evalMessage(lvl), "market", ch)
			assert.Contains(t, []Outcome{OutcomeAllow, OutcomeBatch, OutcomeDrop}, d.Outcome)
		}
	}
}

func TestEvaluate_DefaultPolicyHonorsChannelCadence(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.ChannelFrequency = map[model.ChannelKind]model.Frequency{
		model.ChannelEmail: model.FreqBatched15m,
	}

	d := e.Evaluate(p, evalMessage(model.LevelError), "risk", model.ChannelEmail)

	require.Equal(t, OutcomeBatch, d.Outcome)
	assert.Equal(t, noonUTC.Add(15*time.Minute), d.Deadline)
	assert.Nil(t, d.Rule)
}

func TestEvaluate_DefaultPolicyChannelCadenceDisabledDrops(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.ChannelFrequency = map[model.ChannelKind]model.Frequency{
		model.ChannelEmail: model.FreqDisabled,
	}

	d := e.Evaluate(p, evalMessage(model.LevelError), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeDrop, d.Outcome)
	assert.Equal(t, DropFreqDisabled, d.Reason)
}

func TestEvaluate_MatchedRuleOverridesChannelCadence(t *testing.T) {
	e := NewEvaluator(fixedClock(noonUTC))
	p := evalProfile()
	p.ChannelFrequency = map[model.ChannelKind]model.Frequency{
		model.ChannelEmail: model.FreqDisabled,
	}
	p.Rules = []*model.NotificationRule{{
		RuleID:    "r1",
		Category:  "risk",
		Channels:  map[model.ChannelKind]bool{model.ChannelEmail: true},
		Frequency: model.FreqImmediate,
		Enabled:   true,
	}}

	d := e.Evaluate(p, evalMessage(model.LevelError), "risk", model.ChannelEmail)

	assert.Equal(t, OutcomeAllow, d.Outcome)
}
