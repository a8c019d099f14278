// Package timing evaluates the small day/time rule language used for
// queue operating hours and agent shift windows.
package timing

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// minutesPerDay is the exclusive upper bound a time range may reach; the
// "00:00" end-of-day special case maps to this value, never to 0.
const minutesPerDay = 24 * 60

// Evaluate decides whether now falls inside the admitted set described by
// rules. The empty string and a rule string with no admitting rule both
// return false. "24/7" (case-insensitive) always returns true.
//
// A rule prefixed "cron:" is evaluated as a standard 5-field cron
// expression via gronx, extending the grammar below rather than replacing
// it — e.g. "cron:0-59 9-16 * * 1-5" admits every minute from 09:00 to
// 16:59 on weekdays. Any other rule is "<time-ranges>;<day-spec>" as documented on
// parseRule.
func Evaluate(rules string, now time.Time) bool {
	rules = strings.TrimSpace(rules)
	if rules == "" {
		return false
	}
	if strings.EqualFold(rules, "24/7") {
		return true
	}

	for _, rule := range strings.Split(rules, "|") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if cronExpr, ok := strings.CutPrefix(rule, "cron:"); ok {
			if evaluateCron(cronExpr, now) {
				return true
			}
			continue
		}
		if evaluateRule(rule, now) {
			return true
		}
	}
	return false
}

func evaluateCron(expr string, now time.Time) bool {
	expr = strings.TrimSpace(expr)
	due, err := gronx.IsDue(expr, now)
	if err != nil {
		slog.Warn("timing: malformed cron rule, skipping", "expr", expr, "error", err)
		return false
	}
	return due
}

// evaluateRule evaluates a single "<time-ranges>;<day-spec>" rule.
func evaluateRule(rule string, now time.Time) bool {
	parts := strings.SplitN(rule, ";", 2)
	if len(parts) != 2 {
		slog.Warn("timing: malformed rule, skipping", "rule", rule)
		return false
	}
	timeRanges, daySpec := parts[0], parts[1]

	if !dayMatches(daySpec, now.Weekday()) {
		return false
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	for _, r := range strings.Split(timeRanges, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		start, end, ok := parseTimeRange(r)
		if !ok {
			slog.Warn("timing: malformed time range, skipping", "range", r)
			continue
		}
		if start > end {
			// Explicitly unsupported: overnight single-day ranges must be
			// expressed as two per-day rules joined with "|".
			continue
		}
		if nowMinutes >= start && nowMinutes < end {
			return true
		}
	}
	return false
}

// parseTimeRange parses "HH:MM-HH:MM" into start/end minutes-of-day. The
// literal end "00:00" with a nonzero start means end-of-day (1440), not
// midnight of the same day.
func parseTimeRange(r string) (start, end int, ok bool) {
	bounds := strings.SplitN(r, "-", 2)
	if len(bounds) != 2 {
		return 0, 0, false
	}
	start, ok = parseClock(bounds[0])
	if !ok {
		return 0, 0, false
	}
	end, ok = parseClock(bounds[1])
	if !ok {
		return 0, 0, false
	}
	if end == 0 && start != 0 {
		end = minutesPerDay
	}
	return start, end, true
}

func parseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	hm := strings.SplitN(s, ":", 2)
	if len(hm) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// dayMatches decides whether weekday is named by daySpec, a comma-separated
// list of single days ("Mon") or inclusive ranges ("Mon-Fri"). A range with
// start > end wraps across the week boundary (e.g. "Fri-Mon").
func dayMatches(daySpec string, weekday time.Weekday) bool {
	for _, seg := range strings.Split(daySpec, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if !strings.Contains(seg, "-") {
			d, ok := dayIndex(seg)
			if !ok {
				slog.Warn("timing: malformed day segment, skipping", "segment", seg)
				continue
			}
			if d == int(weekday) {
				return true
			}
			continue
		}
		bounds := strings.SplitN(seg, "-", 2)
		startDay, ok1 := dayIndex(bounds[0])
		endDay, ok2 := dayIndex(bounds[1])
		if !ok1 || !ok2 {
			slog.Warn("timing: malformed day segment, skipping", "segment", seg)
			continue
		}
		if dayInRange(startDay, endDay, int(weekday)) {
			return true
		}
	}
	return false
}

func dayInRange(start, end, day int) bool {
	if start <= end {
		return day >= start && day <= end
	}
	// Wraps across the week boundary, e.g. Fri-Mon.
	return day >= start || day <= end
}

func dayIndex(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, d := range weekdays {
		if strings.EqualFold(d, name) {
			return i, true
		}
	}
	return 0, false
}
