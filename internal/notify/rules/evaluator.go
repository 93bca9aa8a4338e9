// Package rules decides, per (user, message, category, channel) tuple,
// whether a notification is emitted now, deferred into a batch, or dropped.
package rules

import (
	"slices"
	"time"

	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

//go:generate stringer -type=Outcome
type Outcome int16

const (
	OutcomeAllow Outcome = iota + 1
	OutcomeBatch
	OutcomeDrop
)

// Drop reasons form a small closed vocabulary so telemetry stays queryable.
const (
	DropGloballyDisabled = "globally_disabled"
	DropChannelDisabled  = "channel_disabled"
	DropQuietHours       = "quiet_hours"
	DropRuleDisabled     = "rule_disabled"
	DropNoRule           = "no_rule"
	DropFreqDisabled     = "frequency_disabled"
	DropThrottled        = "throttled"
)

// Decision is the evaluator verdict for one channel.
type Decision struct {
	Outcome  Outcome
	Deadline time.Time               // set when Outcome == OutcomeBatch
	Reason   string                  // set when Outcome == OutcomeDrop
	Rule     *model.NotificationRule // matched rule, nil on default-policy outcomes
}

func allow(r *model.NotificationRule) Decision {
	return Decision{Outcome: OutcomeAllow, Rule: r}
}

func batch(r *model.NotificationRule, deadline time.Time) Decision {
	return Decision{Outcome: OutcomeBatch, Deadline: deadline, Rule: r}
}

func drop(reason string, r *model.NotificationRule) Decision {
	return Decision{Outcome: OutcomeDrop, Reason: reason, Rule: r}
}

// Evaluator applies profile gates and routing rules. It is stateless; the
// clock is injected so quiet-hours and deadlines are testable.
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

// Evaluate runs the ordered gate chain; the first failing gate decides.
//
//  1. profile-wide enablement
//  2. channel enablement
//  3. profile quiet hours (critical bypasses)
//  4. best matching rule's frequency
//  5. default policy when no rule matches: Warning and above deliver at
//     the profile's per-channel cadence
func (e *Evaluator) Evaluate(p *model.UserProfile, m *model.NotificationMessage, category string, ch model.ChannelKind) Decision {
	now := e.now()

	if !p.GlobalEnabled {
		return drop(DropGloballyDisabled, nil)
	}
	if !p.ChannelEnabled[ch] {
		return drop(DropChannelDisabled, nil)
	}
	if p.InQuietHours(now) && m.Level != model.LevelCritical {
		return drop(DropQuietHours, nil)
	}

	if rule := e.bestMatch(p, m, category, ch, now); rule != nil {
		switch rule.Frequency {
		case model.FreqImmediate:
			return allow(rule)
		case model.FreqBatched5m, model.FreqBatched15m, model.FreqBatchedHourly, model.FreqDailyDigest:
			return batch(rule, now.Add(rule.Frequency.BatchInterval()))
		case model.FreqDisabled:
			return drop(DropRuleDisabled, rule)
		}
	}

	// Default policy: no configured opinion means only noise is filtered.
	// A per-channel cadence on the profile still defers or mutes.
	if m.Level < model.LevelWarning {
		return drop(DropNoRule, nil)
	}
	switch f := p.ChannelFrequency[ch]; f {
	case model.FreqBatched5m, model.FreqBatched15m, model.FreqBatchedHourly, model.FreqDailyDigest:
		return batch(nil, now.Add(f.BatchInterval()))
	case model.FreqDisabled:
		return drop(DropFreqDisabled, nil)
	}
	return allow(nil)
}

// bestMatch selects the winning rule among those whose predicates pass.
// Specificity wins first (exact category beats "all"); among equals the
// most recently updated rule takes precedence.
func (e *Evaluator) bestMatch(p *model.UserProfile, m *model.NotificationMessage, category string, ch model.ChannelKind, now time.Time) *model.NotificationRule {
	var best *model.NotificationRule
	for _, r := range p.Rules {
		if !r.Enabled || !r.MatchesCategory(category) || !r.ChannelEnabled(ch) {
			continue
		}
		if ruleQuiet(r, now, p.Location()) {
			continue // rule is out of its time/day scope
		}
		if !r.MatchesMessage(m) {
			continue
		}
		if best == nil || morePrecise(r, best) {
			best = r
		}
	}
	return best
}

func morePrecise(candidate, current *model.NotificationRule) bool {
	candExact := candidate.Category != model.CategoryAll
	curExact := current.Category != model.CategoryAll
	if candExact != curExact {
		return candExact
	}
	return candidate.UpdatedAt.After(current.UpdatedAt)
}

// ruleQuiet applies the rule's own time/day scope: inside it the rule does
// not participate in matching at all.
func ruleQuiet(r *model.NotificationRule, now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	if slices.Contains(r.QuietDays, local.Weekday()) {
		return true
	}
	if r.QuietHoursStart == "" || r.QuietHoursEnd == "" {
		return false
	}
	scoped := &model.UserProfile{
		QuietModeEnabled: true,
		QuietStart:       r.QuietHoursStart,
		QuietEnd:         r.QuietHoursEnd,
		Timezone:         loc.String(),
	}
	return scoped.InQuietHours(now)
}
