// Package tray provides a system tray interface for arming and
// disarming motion detection.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(armed bool)
	onQuit   func()
	armed    bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a new Tray instance with detection armed by default.
func New() *Tray {
	return &Tray{
		armed: true,
	}
}

// OnToggle sets the callback function to be called when the armed
// state is toggled.
func (t *Tray) OnToggle(fn func(armed bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback function to be called when the quit menu
// item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// SetLastEvent updates the last-event menu entry.
func (t *Tray) SetLastEvent(text string) {
	t.mu.RLock()
	item := t.menuLastEvent
	t.mu.RUnlock()

	if item != nil {
		item.SetTitle(fmt.Sprintf("Last motion: %s", text))
	}
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit asks the tray loop to exit.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("HammyCam")
	systray.SetTooltip("HammyCam motion detection")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem("Disarm detection", "Toggle motion detection")
	t.menuLastEvent = systray.AddMenuItem("Last motion: none", "Most recent motion event")
	t.menuLastEvent.Disable()
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Stop HammyCam")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.toggle()
			case <-menuQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

// toggle flips the armed state and notifies the callback.
func (t *Tray) toggle() {
	t.mu.Lock()
	t.armed = !t.armed
	armed := t.armed
	onToggle := t.onToggle
	if armed {
		t.menuToggle.SetTitle("Disarm detection")
	} else {
		t.menuToggle.SetTitle("Arm detection")
	}
	t.mu.Unlock()

	if onToggle != nil {
		onToggle(armed)
	}
}

// onExit is called when the tray loop exits.
func (t *Tray) onExit() {
	t.mu.RLock()
	onQuit := t.onQuit
	t.mu.RUnlock()

	if onQuit != nil {
		onQuit()
	}
}
