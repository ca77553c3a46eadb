package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseCommand turns one script line into input events.
//
//	down <key> | up <key> | press <key> | click <left|right|middle> | look <dyaw> <dpitch>
func ParseCommand(line string) ([]Event, error) {
	f := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(f) == 0 || strings.HasPrefix(f[0], "#") {
		return nil, nil
	}
	switch f[0] {
	case "down", "up", "press":
		if len(f) != 2 {
			return nil, fmt.Errorf("%s: want 1 key", f[0])
		}
		switch f[0] {
		case "down":
			return []Event{{Kind: KeyDown, Key: f[1]}}, nil
		case "up":
			return []Event{{Kind: KeyUp, Key: f[1]}}, nil
		}
		return []Event{{Kind: KeyDown, Key: f[1]}, {Kind: KeyUp, Key: f[1]}}, nil
	case "click":
		if len(f) != 2 {
			return nil, fmt.Errorf("click: want a button")
		}
		switch f[1] {
		case ButtonLeft, ButtonRight, ButtonMiddle:
			return []Event{{Kind: Click, Button: f[1]}}, nil
		}
		return nil, fmt.Errorf("click: unknown button %q", f[1])
	case "look":
		if len(f) != 3 {
			return nil, fmt.Errorf("look: want dyaw dpitch")
		}
		dx, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return nil, fmt.Errorf("look: %w", err)
		}
		dy, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, fmt.Errorf("look: %w", err)
		}
		return []Event{{Kind: Look, DX: dx, DY: dy}}, nil
	}
	return nil, fmt.Errorf("unknown command %q", f[0])
}

// EventSink accepts input events; *Inputs is one.
type EventSink interface {
	Push(e Event)
}

// RunScript feeds commands from r into in until EOF or ctx ends. "wait <ms>"
// pauses between commands; bad lines are reported through onErr and skipped.
func RunScript(ctx context.Context, r io.Reader, in EventSink, onErr func(line int, err error)) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "wait "); ok {
			ms, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				onErr(n, err)
				continue
			}
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		events, err := ParseCommand(line)
		if err != nil {
			onErr(n, err)
			continue
		}
		for _, e := range events {
			in.Push(e)
		}
	}
	return sc.Err()
}
