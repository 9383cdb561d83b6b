package model

import "github.com/sirupsen/logrus"

// Expiry presets accepted at creation. Kept as strings for form and URL
// compatibility.
const (
	Expiry1Min  = "1min"
	Expiry10Min = "10min"
	Expiry1Hour = "1hour"
	Expiry24H   = "24hour"
	Expiry3Days = "3days"
	Expiry1Week = "1week"
	ExpiryNever = "never"
)

// ExpirationFrom converts an expiry preset into an absolute Unix timestamp.
// "never" yields 0 only when eternal pastes are allowed, otherwise it falls
// back to one week, like any unknown preset.
func ExpirationFrom(preset string, now int64, eternal bool) int64 {
	switch preset {
	case Expiry1Min:
		return now + 60
	case Expiry10Min:
		return now + 60*10
	case Expiry1Hour:
		return now + 60*60
	case Expiry24H:
		return now + 60*60*24
	case Expiry3Days:
		return now + 60*60*24*3
	case Expiry1Week:
		return now + 60*60*24*7
	case ExpiryNever:
		if eternal {
			return 0
		}
		return now + 60*60*24*7
	default:
		logrus.WithField("expiration", preset).Error("unexpected expiration preset")
		return now + 60*60*24*7
	}
}

// BurnAfterFrom whitelists the read-budget values accepted at creation.
// Unknown values disable the budget.
func BurnAfterFrom(value string) uint64 {
	switch value {
	case "1":
		return 1
	case "10":
		return 10
	case "100":
		return 100
	case "1000":
		return 1000
	case "10000":
		return 10000
	case "0", "":
		return 0
	default:
		logrus.WithField("burn_after", value).Error("unexpected burn after value")
		return 0
	}
}
