package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	for _, s := range []string{"LOW", "MEDIUM", "HIGH"} {
		sev, ok := ParseSeverity(s)
		assert.True(t, ok, s)
		assert.Equal(t, Severity(s), sev)
	}

	for _, s := range []string{"", "low", "CRITICAL", " HIGH"} {
		_, ok := ParseSeverity(s)
		assert.False(t, ok, s)
	}
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("IN_PROGRESS")
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, st)

	_, ok = ParseStatus("DONE")
	assert.False(t, ok)
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusOpen, StatusInProgress, true},
		{StatusOpen, StatusResolved, true},
		{StatusOpen, StatusClosed, true},
		{StatusOpen, StatusOpen, false},
		{StatusInProgress, StatusOpen, true},
		{StatusResolved, StatusOpen, true},
		{StatusResolved, StatusInProgress, false},
		{StatusClosed, StatusOpen, false},
		{StatusClosed, StatusInProgress, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.False(t, StatusOpen.IsTerminal())
	assert.False(t, Status("UNKNOWN").IsTerminal())
}
