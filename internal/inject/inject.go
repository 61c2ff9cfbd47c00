// Package inject delivers translated text to the active application
// using robotgo for keystroke simulation or the clipboard.
package inject

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Methods accepted by NewInjector.
const (
	MethodNone      = "none"
	MethodType      = "type"
	MethodPaste     = "paste"
	MethodClipboard = "clipboard"
)

// TextInjector delivers text somewhere the user can use it.
type TextInjector interface {
	Inject(text string) error
}

// desktop is the slice of robotgo used here.
type desktop interface {
	Type(text string)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	KeyTap(key string, modifier string) error
}

type robotDesktop struct{}

func (robotDesktop) Type(text string) { robotgo.Type(text) }
func (robotDesktop) ReadClipboard() (string, error) { return robotgo.ReadAll() }
func (robotDesktop) WriteClipboard(text string) error { return robotgo.WriteAll(text) }
func (robotDesktop) KeyTap(key, modifier string) error { return robotgo.KeyTap(key, modifier) }

// Compile-time interface satisfaction check.
var _ TextInjector = (*Injector)(nil)

// Injector handles typing, pasting or copying text.
type Injector struct {
	method string
	desk   desktop
}

// NewInjector creates an Injector with the given method: "none", "type"
// (keystroke simulation), "paste" (clipboard then paste shortcut) or
// "clipboard" (leave the text on the clipboard).
func NewInjector(method string) *Injector {
	return &Injector{method: method, desk: robotDesktop{}}
}

// Inject sends text to the active application using the configured method.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}

	switch inj.method {
	case MethodNone:
		return nil
	case MethodPaste:
		return inj.paste(text)
	case MethodClipboard:
		if err := inj.desk.WriteClipboard(text); err != nil {
			return fmt.Errorf("inject: write to clipboard: %w", err)
		}
		return nil
	case MethodType:
		inj.desk.Type(text)
		return nil
	default:
		return fmt.Errorf("inject: unknown method %q", inj.method)
	}
}

// paste copies text to the clipboard and pastes it with the platform
// shortcut. The previous clipboard contents are restored afterwards.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.desk.ReadClipboard()

	if err := inj.desk.WriteClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}

	mod := pasteModifier(runtime.GOOS)
	if err := inj.desk.KeyTap("v", mod); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", mod, err)
	}

	// Restore previous clipboard (best effort)
	_ = inj.desk.WriteClipboard(prev)

	return nil
}

func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
