// Package adb is a host adapter that drives a real Android device over adb.
//
// The Device dials USSD codes with the CALL intent, and its Feed polls
// uiautomator dumps, emitting a snapshot each time the visible hierarchy
// changes. Node actions become "input tap" and "input text" shell commands.
package adb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/ussdcode"
)

const (
	// DefaultDumpPath is where uiautomator writes the hierarchy on the device.
	DefaultDumpPath = "/sdcard/ussdpilot_dump.xml"

	// DefaultActionTimeout bounds each shell command issued for a node action.
	DefaultActionTimeout = 5 * time.Second
)

// Shell runs a command in the device shell.
// Implemented by process.Runner; replaced by fakes in tests.
type Shell interface {
	Shell(ctx context.Context, cmd string) (string, error)
}

// Device is one adb-attached phone. It implements ports.Dialer.
type Device struct {
	shell         Shell
	logger        *slog.Logger
	dumpPath      string
	actionTimeout time.Duration
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// WithDumpPath overrides the on-device dump file.
func WithDumpPath(path string) Option {
	return func(d *Device) {
		d.dumpPath = path
	}
}

// WithActionTimeout bounds tap and text commands.
func WithActionTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		if timeout > 0 {
			d.actionTimeout = timeout
		}
	}
}

// NewDevice wraps shell.
func NewDevice(shell Shell, opts ...Option) *Device {
	d := &Device{
		shell:         shell,
		logger:        logging.NewNop(),
		dumpPath:      DefaultDumpPath,
		actionTimeout: DefaultActionTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial implements ports.Dialer by firing the CALL intent for code.
func (d *Device) Dial(ctx context.Context, code string) error {
	if err := ussdcode.Validate(code); err != nil {
		return err
	}
	cmd := "am start -a android.intent.action.CALL -d " + quote(ussdcode.TelURI(code))
	out, err := d.shell.Shell(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to start call intent: %w", err)
	}
	// am reports most failures on stdout with a zero exit status.
	if i := strings.Index(out, "Error:"); i >= 0 {
		return fmt.Errorf("call intent rejected: %s", strings.TrimSpace(out[i:]))
	}
	d.logger.Debug("call intent sent")
	return nil
}

// Dump captures the current UI hierarchy.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	cmd := fmt.Sprintf("uiautomator dump %s >/dev/null && cat %s", d.dumpPath, d.dumpPath)
	out, err := d.shell.Shell(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to dump ui hierarchy: %w", err)
	}
	return []byte(out), nil
}

// Tap sends a tap at (x, y).
func (d *Device) Tap(ctx context.Context, x, y int) error {
	_, err := d.shell.Shell(ctx, "input tap "+strconv.Itoa(x)+" "+strconv.Itoa(y))
	if err != nil {
		return fmt.Errorf("tap failed: %w", err)
	}
	return nil
}

// ReplaceText focuses the field at (x, y), deletes its current content and
// types value.
func (d *Device) ReplaceText(ctx context.Context, x, y int, current, value string) error {
	if err := d.Tap(ctx, x, y); err != nil {
		return err
	}
	if n := len([]rune(current)); n > 0 {
		cmd := "input keyevent KEYCODE_MOVE_END" + strings.Repeat(" KEYCODE_DEL", n)
		if _, err := d.shell.Shell(ctx, cmd); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
	}
	if value == "" {
		return nil
	}
	if _, err := d.shell.Shell(ctx, "input text "+quote(escapeInput(value))); err != nil {
		return fmt.Errorf("text input failed: %w", err)
	}
	return nil
}

// escapeInput encodes spaces the way "input text" expects them.
func escapeInput(s string) string {
	return strings.ReplaceAll(s, " ", "%s")
}

// quote wraps s in single quotes for the device shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
