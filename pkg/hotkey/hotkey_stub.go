//go:build !darwin

package hotkey

import "github.com/jeff-barlow-spady/ramble/pkg/ferrors"

// stubBackend is the Windows/Linux hotkey backend. No global-key-observer
// binding in the example corpus covers those platforms' equivalent of a
// CGEventTap (RegisterHotKey/XGrabKey would each need their own binding not
// present anywhere in the pack), so both stay stubs per SPEC_FULL §4.2.
type stubBackend struct{}

func newPlatformBackend() Backend { return stubBackend{} }

func (stubBackend) Start(KeyCode) error               { return ferrors.ErrNotImplemented }
func (stubBackend) Stop() error                       { return nil }
func (stubBackend) TryRecv() (HotkeyEvent, bool)      { return HotkeyEvent{}, false }
