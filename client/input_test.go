package client

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFiresOncePerPress(t *testing.T) {
	in := NewInputs()
	n := 0
	in.Bind("g", func() { n++ })

	in.Push(Event{Kind: KeyDown, Key: "g"})
	in.Push(Event{Kind: KeyDown, Key: "g"}) // auto-repeat
	in.Dispatch()
	assert.Equal(t, 1, n)
	assert.True(t, in.IsDown("g"))

	in.Push(Event{Kind: KeyUp, Key: "g"})
	in.Push(Event{Kind: KeyDown, Key: "g"})
	in.Dispatch()
	assert.Equal(t, 2, n)
}

func TestAxesAndLook(t *testing.T) {
	in := NewInputs()
	for _, k := range []string{"w", "a", "space"} {
		in.Push(Event{Kind: KeyDown, Key: k})
	}
	in.Push(Event{Kind: Look, DX: 0.1, DY: -0.2})
	in.Push(Event{Kind: Look, DX: 0.1})
	in.Dispatch()

	assert.Equal(t, Axes{Forward: 1, Right: -1, Up: 1}, in.Axes())
	dx, dy := in.TakeLook()
	assert.InDelta(t, 0.2, dx, 1e-12)
	assert.InDelta(t, -0.2, dy, 1e-12)
	dx, dy = in.TakeLook()
	assert.Zero(t, dx)
	assert.Zero(t, dy)
}

func TestDiscardSkipsHandlers(t *testing.T) {
	in := NewInputs()
	clicked := false
	in.Click(ButtonLeft, func() { clicked = true })
	in.Push(Event{Kind: Click, Button: ButtonLeft})
	in.Discard()
	in.Dispatch()
	assert.False(t, clicked)
}

func TestPushDropsWhenFull(t *testing.T) {
	in := NewInputs()
	for i := 0; i < 300; i++ {
		in.Push(Event{Kind: Click, Button: ButtonLeft})
	}
	assert.Equal(t, int64(300-256), in.Dropped())
}

func TestParseCommand(t *testing.T) {
	ev, err := ParseCommand("press G")
	require.NoError(t, err)
	assert.Equal(t, []Event{{Kind: KeyDown, Key: "g"}, {Kind: KeyUp, Key: "g"}}, ev)

	ev, err = ParseCommand("click middle")
	require.NoError(t, err)
	assert.Equal(t, []Event{{Kind: Click, Button: ButtonMiddle}}, ev)

	ev, err = ParseCommand("look 0.5 -0.25")
	require.NoError(t, err)
	assert.Equal(t, []Event{{Kind: Look, DX: 0.5, DY: -0.25}}, ev)

	ev, err = ParseCommand("  # comment")
	require.NoError(t, err)
	assert.Empty(t, ev)

	for _, bad := range []string{"jump", "click nose", "look 1", "down", "look x 1"} {
		_, err := ParseCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunScript(t *testing.T) {
	in := NewInputs()
	var bad []int
	script := "down w\nwait 1\nfly me\nclick left\n"
	err := RunScript(context.Background(), strings.NewReader(script), in, func(line int, _ error) {
		bad = append(bad, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, bad)

	clicks := 0
	in.Click(ButtonLeft, func() { clicks++ })
	in.Dispatch()
	assert.True(t, in.IsDown("w"))
	assert.Equal(t, 1, clicks)
}
