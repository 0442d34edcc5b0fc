package quota

import "time"

// Scope identifies which budget a window counts against.
type Scope string

const (
	ScopeHour Scope = "hour"
	ScopeDay  Scope = "day"
)

const (
	dayKeyLayout  = "2006-01-02"
	hourKeyLayout = "2006-01-02-15"

	// Retention horizons for pruning old windows.
	dailyRetention  = 7 * 24 * time.Hour
	hourlyRetention = 24 * time.Hour
)

// Window is a time-bounded usage counter. Used never decreases within a
// window; a new window key replaces the old counter rather than resetting it.
type Window struct {
	Scope Scope  `json:"scope"`
	Key   string `json:"key"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}

// Remaining returns how many requests are left in the window.
func (w Window) Remaining() int {
	r := w.Limit - w.Used
	if r < 0 {
		return 0
	}
	return r
}

// State is the persisted form of all live quota windows. The layout matches
// the flat usage file: window keys map directly to counters.
type State struct {
	Daily     map[string]int `json:"daily_usage"`
	Hourly    map[string]int `json:"hourly_usage"`
	LastUsage time.Time      `json:"last_usage,omitzero"`
}

// NewState returns an empty usage state with initialized maps.
func NewState() State {
	return State{
		Daily:  make(map[string]int),
		Hourly: make(map[string]int),
	}
}

func dayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

func hourKey(t time.Time) string {
	return t.Format(hourKeyLayout)
}

// prune drops daily windows older than 7 days and hourly windows older than
// 24 hours, keeping the persisted state small.
func (s *State) prune(now time.Time) {
	dayCutoff := now.Add(-dailyRetention)
	for key := range s.Daily {
		t, err := time.ParseInLocation(dayKeyLayout, key, now.Location())
		if err != nil || t.Before(dayCutoff) {
			delete(s.Daily, key)
		}
	}

	hourCutoff := now.Add(-hourlyRetention)
	for key := range s.Hourly {
		t, err := time.ParseInLocation(hourKeyLayout, key, now.Location())
		if err != nil || t.Before(hourCutoff) {
			delete(s.Hourly, key)
		}
	}
}
