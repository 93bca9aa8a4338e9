package model

import (
	"slices"
	"strings"
	"time"
)

// CategoryAll matches every message category.
const CategoryAll = "all"

// NotificationRule is a user-owned routing policy. It decides whether a
// message reaches a channel and at what cadence.
//
// Throttle bookkeeping (emissions in the last hour, last-sent stamps) is
// deliberately NOT part of the rule value: rules travel inside read-only
// profile snapshots, counters live in the throttle gate keyed by
// (user_id, rule_id).
type NotificationRule struct {
	RuleID          string
	UserID          string
	Category        string // "risk", "trade", "system", "market" or CategoryAll
	MinLevel        Level
	Channels        map[ChannelKind]bool
	Frequency       Frequency
	Enabled         bool
	QuietHoursStart string // "HH:MM", optional per-rule window
	QuietHoursEnd   string
	QuietDays       []time.Weekday
	MaxPerHour      int           // 0 means unlimited
	Cooldown        time.Duration // min spacing between emissions
	KeywordFilters  []string      // any substring match of title/body required
	ExcludeKeywords []string      // any match drops the message
	ExchangeFilters []string      // empty means any exchange
	UpdatedAt       time.Time
}

// MatchesCategory reports whether the rule applies to the given category.
func (r *NotificationRule) MatchesCategory(category string) bool {
	return r.Category == category || r.Category == CategoryAll
}

// MatchesMessage runs the rule's content predicates against a message:
// level floor, exchange filter, keyword include/exclude lists.
func (r *NotificationRule) MatchesMessage(m *NotificationMessage) bool {
	if m.Level < r.MinLevel {
		return false
	}
	if len(r.ExchangeFilters) > 0 && !slices.Contains(r.ExchangeFilters, m.ExchangeID) {
		return false
	}
	text := strings.ToLower(m.Title + " " + m.Body)
	for _, kw := range r.ExcludeKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	if len(r.KeywordFilters) > 0 {
		matched := false
		for _, kw := range r.KeywordFilters {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// ChannelEnabled reports whether the rule routes to the given channel.
func (r *NotificationRule) ChannelEnabled(ch ChannelKind) bool {
	return r.Channels[ch]
}

// Clone returns an independent copy for profile snapshots.
func (r *NotificationRule) Clone() *NotificationRule {
	cp := *r
	cp.Channels = make(map[ChannelKind]bool, len(r.Channels))
	for k, v := range r.Channels {
		cp.Channels[k] = v
	}
	cp.QuietDays = slices.Clone(r.QuietDays)
	cp.KeywordFilters = slices.Clone(r.KeywordFilters)
	cp.ExcludeKeywords = slices.Clone(r.ExcludeKeywords)
	cp.ExchangeFilters = slices.Clone(r.ExchangeFilters)
	return &cp
}
