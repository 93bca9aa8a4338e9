package model

import "time"

//go:generate stringer -type=DevicePlatform
type DevicePlatform int16

const (
	PlatformAndroid DevicePlatform = iota + 1
	PlatformIOS
	PlatformWeb
)

func (p DevicePlatform) String() string {
	switch p {
	case PlatformAndroid:
		return "android"
	case PlatformIOS:
		return "ios"
	case PlatformWeb:
		return "web"
	}
	return "unknown"
}

// Device is one push-capable endpoint of a user. DeviceID is unique per
// user; re-registering an existing DeviceID replaces the token in place.
type Device struct {
	DeviceID     string
	UserID       string
	PushToken    string
	Platform     DevicePlatform
	Active       bool
	RegisteredAt time.Time
}
