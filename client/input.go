package client

import "sync/atomic"

// EventKind classifies an input event.
type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
	Click
	Look
)

// Mouse buttons.
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
)

// Event is one raw input event pushed by the platform side.
type Event struct {
	Kind   EventKind
	Key    string  // KeyDown/KeyUp
	Button string  // Click
	DX, DY float64 // Look, radians
}

// Axes is the continuous movement intent, each component in [-1, 1].
type Axes struct {
	Forward float64
	Right   float64
	Up      float64
}

// Inputs buffers raw events from any goroutine and dispatches them on the tick goroutine.
type Inputs struct {
	events chan Event

	clicks map[string][]func()
	binds  map[string][]func()
	down   map[string]bool

	lookX, lookY float64

	dropped atomic.Int64
}

func NewInputs() *Inputs {
	return &Inputs{
		events: make(chan Event, 256),
		clicks: make(map[string][]func()),
		binds:  make(map[string][]func()),
		down:   make(map[string]bool),
	}
}

// Push enqueues an event without blocking; a full queue drops it.
func (in *Inputs) Push(e Event) {
	select {
	case in.events <- e:
	default:
		in.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue.
func (in *Inputs) Dropped() int64 { return in.dropped.Load() }

// Click registers a handler for a mouse button.
func (in *Inputs) Click(button string, fn func()) {
	in.clicks[button] = append(in.clicks[button], fn)
}

// Bind registers a handler fired once per key press (not while held).
func (in *Inputs) Bind(key string, fn func()) {
	in.binds[key] = append(in.binds[key], fn)
}

// Dispatch drains the queue and fires discrete handlers. Tick goroutine only.
func (in *Inputs) Dispatch() {
	for {
		select {
		case e := <-in.events:
			in.handle(e)
		default:
			return
		}
	}
}

// Discard drops queued events without firing handlers. Used while the world is not running.
func (in *Inputs) Discard() {
	for {
		select {
		case <-in.events:
		default:
			return
		}
	}
}

func (in *Inputs) handle(e Event) {
	switch e.Kind {
	case KeyDown:
		if in.down[e.Key] {
			return
		}
		in.down[e.Key] = true
		for _, fn := range in.binds[e.Key] {
			fn()
		}
	case KeyUp:
		delete(in.down, e.Key)
	case Click:
		for _, fn := range in.clicks[e.Button] {
			fn()
		}
	case Look:
		in.lookX += e.DX
		in.lookY += e.DY
	}
}

// IsDown reports whether key is held.
func (in *Inputs) IsDown(key string) bool { return in.down[key] }

// Axes derives movement from the held WASD/space/shift keys.
func (in *Inputs) Axes() Axes {
	return Axes{
		Forward: in.axis("w", "s"),
		Right:   in.axis("d", "a"),
		Up:      in.axis("space", "shift"),
	}
}

func (in *Inputs) axis(pos, neg string) float64 {
	v := 0.0
	if in.down[pos] {
		v++
	}
	if in.down[neg] {
		v--
	}
	return v
}

// TakeLook returns and resets the accumulated mouse delta.
func (in *Inputs) TakeLook() (dx, dy float64) {
	dx, dy = in.lookX, in.lookY
	in.lookX, in.lookY = 0, 0
	return dx, dy
}
