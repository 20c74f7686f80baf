//go:build darwin

package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// darwinBackend installs a passive global key observer via gohook's
// CGEventTap binding, restricted to the single configured KeyCode. gohook
// exposes no API to probe the accessibility grant ahead of time; if it is
// absent, macOS simply never delivers events to the tap, so Start succeeds
// optimistically and an absent grant surfaces as "no events ever arrive"
// rather than an explicit ErrPermissionRequired at Start time.
type darwinBackend struct {
	mu     sync.Mutex
	state  runState
	key    KeyCode
	stopCh chan struct{}
	doneCh chan struct{}
	queue  *eventQueue
}

func newPlatformBackend() Backend {
	return &darwinBackend{state: stateStopped, queue: newEventQueue()}
}

func (b *darwinBackend) Start(key KeyCode) error {
	b.mu.Lock()
	if b.state != stateStopped {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.state = stateStarting
	b.key = key
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.mu.Unlock()

	go b.runLoop()

	b.mu.Lock()
	b.state = stateRunning
	b.mu.Unlock()
	return nil
}

func (b *darwinBackend) runLoop() {
	defer close(b.doneCh)

	evChan := hook.Start()
	defer hook.End()

	for {
		select {
		case <-b.stopCh:
			return
		case ev := <-evChan:
			if ev.Kind != hook.KeyDown && ev.Kind != hook.KeyUp {
				continue
			}
			if !matchesKeyCode(ev, b.key) {
				continue
			}
			kind := EventKeyDown
			if ev.Kind == hook.KeyUp {
				kind = EventKeyUp
			}
			b.queue.push(HotkeyEvent{Key: b.key, Kind: kind})
		}
	}
}

func (b *darwinBackend) Stop() error {
	b.mu.Lock()
	if b.state != stateRunning {
		b.mu.Unlock()
		return nil
	}
	b.state = stateStopping
	close(b.stopCh)
	b.mu.Unlock()

	<-b.doneCh

	b.mu.Lock()
	b.state = stateStopped
	b.mu.Unlock()
	return nil
}

func (b *darwinBackend) TryRecv() (HotkeyEvent, bool) { return b.queue.tryRecv() }

// darwinRawcodes maps a KeyCode to the macOS virtual keycode gohook reports
// in ev.Rawcode; gohook reports the modifier-class keys FlowSTT supports as
// raw keycodes rather than printable characters, so the match is against
// the platform keycode table.
var darwinRawcodes = map[KeyCode]uint16{
	KeyRightOption:  0x3D,
	KeyLeftOption:   0x3A,
	KeyRightControl: 0x3E,
	KeyLeftControl:  0x3B,
	KeyRightShift:   0x3C,
	KeyLeftShift:    0x38,
	KeyCapsLock:     0x39,
	KeyF13:          0x69,
	KeyF14:          0x6B,
	KeyF15:          0x71,
	KeyF16:          0x6A,
	KeyF17:          0x40,
	KeyF18:          0x4F,
	KeyF19:          0x50,
	KeyF20:          0x5A,
}

func matchesKeyCode(ev hook.Event, key KeyCode) bool {
	want, ok := darwinRawcodes[key]
	if !ok {
		return false
	}
	return uint16(ev.Rawcode) == want
}

func init() {
	logger.Debug(logger.CategoryHotkey, "darwin hotkey backend registered")
}
