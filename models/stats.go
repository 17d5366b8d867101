package models

import "time"

// Stat is a single named counter for a user. ExpiresAt is nil for lifetime
// counters and set to the end of the window for expiring ones (daily_exp,
// weekly_exp).
type Stat struct {
	Name      string     `json:"name"`
	Value     int64      `json:"value"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
