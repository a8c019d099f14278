package timing

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return tm
}

func TestEvaluate247AlwaysTrue(t *testing.T) {
	instants := []string{
		"2026-01-05T03:00:00Z", // Monday
		"2026-01-10T23:59:00Z", // Saturday
	}
	for _, s := range instants {
		now := mustParse(t, time.RFC3339, s)
		if !Evaluate("24/7", now) {
			t.Errorf("24/7 should admit %s", s)
		}
		if !Evaluate("24/7", now) {
			t.Errorf("24/7 (repeated evaluation) should admit %s", s)
		}
	}
	if !Evaluate("24/7", time.Now()) {
		t.Errorf("24/7 should admit the current instant")
	}
}

func TestEvaluateEmptyIsFalse(t *testing.T) {
	if Evaluate("", time.Now()) {
		t.Errorf("empty rule string must be false")
	}
}

func TestEvaluateBusinessHours(t *testing.T) {
	rule := "09:00-17:00;Mon-Fri"

	saturday := mustParse(t, time.RFC3339, "2026-01-10T14:00:00Z")
	if Evaluate(rule, saturday) {
		t.Errorf("Saturday 14:00 should not be admitted by %q", rule)
	}

	mondayMorning := mustParse(t, time.RFC3339, "2026-01-05T09:00:00Z")
	if !Evaluate(rule, mondayMorning) {
		t.Errorf("Monday 09:00 (inclusive start) should be admitted by %q", rule)
	}

	mondayClose := mustParse(t, time.RFC3339, "2026-01-05T17:00:00Z")
	if Evaluate(rule, mondayClose) {
		t.Errorf("Monday 17:00 (exclusive end) should not be admitted by %q", rule)
	}
}

func TestEvaluateWrapAroundDaySpec(t *testing.T) {
	rule := "00:00-24:00;Fri-Mon"
	saturday := mustParse(t, time.RFC3339, "2026-01-10T12:00:00Z")
	if !Evaluate(rule, saturday) {
		t.Errorf("wrap-around day-spec Fri-Mon should admit Saturday")
	}
	wednesday := mustParse(t, time.RFC3339, "2026-01-07T12:00:00Z")
	if Evaluate(rule, wednesday) {
		t.Errorf("wrap-around day-spec Fri-Mon should not admit Wednesday")
	}
}

func TestEvaluateOvernightSingleDayUnsupported(t *testing.T) {
	rule := "22:00-02:00;Mon"
	mondayNight := mustParse(t, time.RFC3339, "2026-01-05T23:00:00Z")
	if Evaluate(rule, mondayNight) {
		t.Errorf("start>end single-day range must be treated as inactive per spec")
	}
}

func TestEvaluateOvernightViaTwoRules(t *testing.T) {
	rule := "22:00-24:00;Mon|00:00-02:00;Tue"
	mondayNight := mustParse(t, time.RFC3339, "2026-01-05T23:00:00Z")
	if !Evaluate(rule, mondayNight) {
		t.Errorf("combined per-day rules should admit Monday 23:00")
	}
	tuesdayEarly := mustParse(t, time.RFC3339, "2026-01-06T01:00:00Z")
	if !Evaluate(rule, tuesdayEarly) {
		t.Errorf("combined per-day rules should admit Tuesday 01:00")
	}
}

func TestEvaluateMalformedRuleSkipped(t *testing.T) {
	if Evaluate("not-a-rule", time.Now()) {
		t.Errorf("malformed rule string should evaluate to false, not panic or match")
	}
}

func TestEvaluateMonotoneUnderRuleUnion(t *testing.T) {
	base := "09:00-10:00;Mon"
	union := base + "|14:00-15:00;Tue"
	mondayMorning := mustParse(t, time.RFC3339, "2026-01-05T09:30:00Z")

	if Evaluate(base, mondayMorning) && !Evaluate(union, mondayMorning) {
		t.Errorf("adding a rule must not turn a true admission into false")
	}
}

func TestEvaluateCronRule(t *testing.T) {
	rule := "cron:0-59 9-16 * * 1-5"
	mondayAfternoon := mustParse(t, time.RFC3339, "2026-01-05T15:30:00Z")
	if !Evaluate(rule, mondayAfternoon) {
		t.Errorf("cron rule should admit Monday 15:30")
	}
	saturday := mustParse(t, time.RFC3339, "2026-01-10T15:30:00Z")
	if Evaluate(rule, saturday) {
		t.Errorf("cron rule should not admit Saturday")
	}
}
