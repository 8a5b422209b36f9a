package cgm

import (
	"errors"
	"fmt"
	"testing"
)

func TestTrendFromArrow(t *testing.T) {
	cases := []struct {
		code int
		want Trend
	}{
		{0, TrendNotComputable},
		{1, TrendSingleDown},
		{2, TrendFortyFiveDown},
		{3, TrendFlat},
		{4, TrendFortyFiveUp},
		{5, TrendSingleUp},
		{6, TrendNotComputable},
		{42, TrendNotComputable},
		{-1, TrendNotComputable},
	}

	for _, c := range cases {
		if got := TrendFromArrow(c.code); got != c.want {
			t.Errorf("unexpected trend for code %d: got %v, want %v", c.code, got, c.want)
		}
	}
}

func TestTrendRepresentations(t *testing.T) {
	cases := []struct {
		trend Trend
		name  string
		arrow string
	}{
		{TrendNotComputable, "NotComputable", "?"},
		{TrendSingleDown, "SingleDown", "↓"},
		{TrendFortyFiveDown, "FortyFiveDown", "↘"},
		{TrendFlat, "Flat", "→"},
		{TrendFortyFiveUp, "FortyFiveUp", "↗"},
		{TrendSingleUp, "SingleUp", "↑"},
		{Trend(99), "NotComputable", "?"},
	}

	for _, c := range cases {
		if got := c.trend.String(); got != c.name {
			t.Errorf("unexpected name for trend %d: got %s, want %s", c.trend, got, c.name)
		}
		if got := c.trend.Arrow(); got != c.arrow {
			t.Errorf("unexpected arrow for trend %d: got %s, want %s", c.trend, got, c.arrow)
		}
	}
}

func TestTrendUnmarshalText(t *testing.T) {
	var trend Trend

	if err := trend.UnmarshalText([]byte("FortyFiveUp")); err != nil {
		t.Fatalf("failed to unmarshal known trend name: %s", err)
	}
	if trend != TrendFortyFiveUp {
		t.Fatalf("unexpected trend after unmarshal: %v", trend)
	}

	if err := trend.UnmarshalText([]byte("NoSuchTrend")); err != nil {
		t.Fatalf("unmarshal of unknown trend name unexpectedly failed: %s", err)
	}
	if trend != TrendNotComputable {
		t.Fatalf("unknown trend name did not map to TrendNotComputable: %v", trend)
	}
}

type testTerminalError struct {
	msg string
}

func (e *testTerminalError) Error() string {
	return e.msg
}

func (e *testTerminalError) Terminal() bool {
	return true
}

func TestIsTerminal(t *testing.T) {
	fatal := &testTerminalError{msg: "invalid credentials"}

	if !IsTerminal(fatal) {
		t.Fatalf("terminal error was not classified as terminal")
	}
	if !IsTerminal(fmt.Errorf("login: %w", fatal)) {
		t.Fatalf("wrapped terminal error was not classified as terminal")
	}
	if IsTerminal(errors.New("connection reset")) {
		t.Fatalf("plain error was unexpectedly classified as terminal")
	}
	if IsTerminal(nil) {
		t.Fatalf("nil error was unexpectedly classified as terminal")
	}
}
