// Package tray provides a menu-bar control for the capture loop: a recording toggle,
// the last saved session and quit.
package tray

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

const (
	titleIdle      = "○ Idle"
	titleRecording = "● Recording"
	lastNone       = "Last: none"
)

// refreshInterval is how often the menu re-reads the recording state while it is shown.
const refreshInterval = time.Second

// State is the recording state reported by whatever owns the recorder.
type State struct {
	Recording   bool
	LastSession string
}

// Tray represents the system tray application.
type Tray struct {
	onToggle  func(recording bool) error
	onQuit    func()
	state     func() State
	recording bool
	last      string
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastSession *systray.MenuItem
}

// New creates a new Tray in the idle state.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback run when the recording toggle is clicked. It receives the
// requested state; an error leaves the toggle where it was.
func (t *Tray) OnToggle(fn func(recording bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnState sets the source of truth for the recording state. The tray re-reads it before
// every toggle and periodically while running, so changes made elsewhere (such as the
// HTTP API) are reflected in the menu.
func (t *Tray) OnState(fn func() State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handrelay")
	systray.SetTooltip("handrelay hand tracking relay")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.recording), "Start or stop recording")
	systray.AddSeparator()

	t.menuLastSession = systray.AddMenuItem(lastTitle(t.last), "Last saved session")
	t.menuLastSession.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handrelay")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Refresh()
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(recording bool) string {
	if recording {
		return titleRecording
	}
	return titleIdle
}

func lastTitle(path string) string {
	if path == "" {
		return lastNone
	}
	return "Last: " + filepath.Base(path)
}

// Refresh pulls the current state from the OnState source.
func (t *Tray) Refresh() {
	t.mu.RLock()
	source := t.state
	t.mu.RUnlock()
	if source == nil {
		return
	}

	st := source()
	t.SetRecording(st.Recording)
	if st.LastSession != "" {
		t.SetLastSession(st.LastSession)
	}
}

// handleToggle flips the recording state when the callback accepts the change.
func (t *Tray) handleToggle() {
	t.Refresh()

	t.mu.RLock()
	want := !t.recording
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(want); err != nil {
			slog.Warn("recording toggle failed", "recording", want, "error", err)
			return
		}
	}
	t.SetRecording(want)
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRecording updates the toggle without running the callback, for changes made
// elsewhere such as the HTTP API.
func (t *Tray) SetRecording(recording bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = recording
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(recording))
	}
}

// SetLastSession shows the file name of the last saved session. It may be called
// before Run.
func (t *Tray) SetLastSession(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = path
	if t.menuLastSession != nil {
		t.menuLastSession.SetTitle(lastTitle(path))
	}
}

// LastSession returns the path shown as the last saved session.
func (t *Tray) LastSession() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsRecording returns the toggle state.
func (t *Tray) IsRecording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}
