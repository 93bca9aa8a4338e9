package model

import (
	"fmt"
	"time"
)

//go:generate stringer -type=ChannelKind
type ChannelKind int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	ChannelPush ChannelKind = iota + 1
	ChannelEmail
	ChannelWebhook
	ChannelSMS
	ChannelSlack
	ChannelLog
)

func (c ChannelKind) String() string {
	switch c {
	case ChannelPush:
		return "push"
	case ChannelEmail:
		return "email"
	case ChannelWebhook:
		return "webhook"
	case ChannelSMS:
		return "sms"
	case ChannelSlack:
		return "slack"
	case ChannelLog:
		return "log"
	}
	return fmt.Sprintf("channel(%d)", int16(c))
}

// AllChannels is the fixed evaluation order for dispatcher fan-out.
var AllChannels = []ChannelKind{ChannelPush, ChannelEmail, ChannelWebhook, ChannelSMS, ChannelSlack, ChannelLog}

// Frequency is the per-channel delivery cadence policy.
type Frequency int16

const (
	FreqImmediate Frequency = iota + 1
	FreqBatched5m
	FreqBatched15m
	FreqBatchedHourly
	FreqDailyDigest
	FreqDisabled
)

// BatchInterval returns the deferral window for batched frequencies
// and zero for immediate/disabled.
func (f Frequency) BatchInterval() time.Duration {
	switch f {
	case FreqBatched5m:
		return 5 * time.Minute
	case FreqBatched15m:
		return 15 * time.Minute
	case FreqBatchedHourly:
		return time.Hour
	case FreqDailyDigest:
		return 24 * time.Hour
	}
	return 0
}

// UserProfile aggregates everything routing needs to know about one user.
//
// The profile is owned by the user repository; the dispatcher only ever
// works on snapshot copies, so concurrent administrative updates can never
// be observed mid-evaluation.
type UserProfile struct {
	UserID           string
	Email            string
	Phone            string
	WebhookURL       string // per-user webhook endpoint, optional
	SlackWebhookURL  string // per-user slack incoming webhook, optional
	Timezone         string // IANA name; empty means UTC
	GlobalEnabled    bool
	ChannelEnabled   map[ChannelKind]bool
	ChannelFrequency map[ChannelKind]Frequency
	QuietModeEnabled bool
	QuietStart       string // "HH:MM"
	QuietEnd         string // "HH:MM"
	Devices          []*Device
	Rules            []*NotificationRule
	UpdatedAt        time.Time
}

// NewUserProfile returns a profile with delivery globally enabled and
// every channel off until explicitly switched on.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:           userID,
		GlobalEnabled:    true,
		ChannelEnabled:   map[ChannelKind]bool{},
		ChannelFrequency: map[ChannelKind]Frequency{},
		UpdatedAt:        time.Now(),
	}
}

// Location resolves the profile timezone, falling back to UTC.
func (p *UserProfile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InQuietHours reports whether the user-local time of now falls inside the
// configured quiet window. The window wraps across midnight when
// QuietStart > QuietEnd ("22:00".."08:00").
func (p *UserProfile) InQuietHours(now time.Time) bool {
	if !p.QuietModeEnabled {
		return false
	}
	start, okS := parseMinuteOfDay(p.QuietStart)
	end, okE := parseMinuteOfDay(p.QuietEnd)
	if !okS || !okE || start == end {
		return false
	}
	local := now.In(p.Location())
	cur := local.Hour()*60 + local.Minute()
	if start < end {
		return cur >= start && cur < end
	}
	// Wrap-around window.
	return cur >= start || cur < end
}

// ActiveDevices filters the registered devices down to the deliverable set.
func (p *UserProfile) ActiveDevices() []*Device {
	out := make([]*Device, 0, len(p.Devices))
	for _, d := range p.Devices {
		if d.Active {
			out = append(out, d)
		}
	}
	return out
}

// Clone produces a deep snapshot safe to hand to dispatcher workers.
func (p *UserProfile) Clone() *UserProfile {
	cp := *p
	cp.ChannelEnabled = make(map[ChannelKind]bool, len(p.ChannelEnabled))
	for k, v := range p.ChannelEnabled {
		cp.ChannelEnabled[k] = v
	}
	cp.ChannelFrequency = make(map[ChannelKind]Frequency, len(p.ChannelFrequency))
	for k, v := range p.ChannelFrequency {
		cp.ChannelFrequency[k] = v
	}
	cp.Devices = make([]*Device, len(p.Devices))
	for i, d := range p.Devices {
		dd := *d
		cp.Devices[i] = &dd
	}
	cp.Rules = make([]*NotificationRule, len(p.Rules))
	for i, r := range p.Rules {
		cp.Rules[i] = r.Clone()
	}
	return &cp
}

// parseMinuteOfDay converts "HH:MM" into minutes since local midnight.
// Comparing minute offsets instead of raw strings keeps wrap-around
// windows correct.
func parseMinuteOfDay(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
