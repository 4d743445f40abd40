package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
)

type state string
type event string

func lamp() *Machine[state, event] {
	return New[state, event]("lamp",
		[]state{"off", "on", "broken"},
		Transition[state, event]{From: []state{"off"}, Event: "switch_on", To: "on"},
		Transition[state, event]{From: []state{"on"}, Event: "switch_off", To: "off"},
		Transition[state, event]{From: []state{"off", "on"}, Event: "smash", To: "broken"},
	)
}

func TestFire(t *testing.T) {
	m := lamp()

	to, err := m.Fire("off", "switch_on")
	require.NoError(t, err)
	assert.Equal(t, state("on"), to)

	to, err = m.Fire("on", "switch_on")
	require.Error(t, err)
	assert.Equal(t, state("on"), to)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, appErr.Code)
	assert.Equal(t, "on", appErr.Details["status"])
}

func TestTerminalAndEvents(t *testing.T) {
	m := lamp()

	assert.True(t, m.IsTerminal("broken"))
	assert.False(t, m.IsTerminal("off"))
	assert.Equal(t, []event{"smash", "switch_on"}, m.Events("off"))
	assert.Empty(t, m.Events("broken"))
}

func TestNewPanicsOnUnknownState(t *testing.T) {
	assert.Panics(t, func() {
		New[state, event]("bad", []state{"a"},
			Transition[state, event]{From: []state{"a"}, Event: "go", To: "b"})
	})
	assert.Panics(t, func() {
		New[state, event]("dup", []state{"a", "b"},
			Transition[state, event]{From: []state{"a"}, Event: "go", To: "b"},
			Transition[state, event]{From: []state{"a"}, Event: "go", To: "a"})
	})
}
