// Package notify shows desktop notifications after captures complete.
// Notification failures are logged and swallowed; a screenshot that
// saved correctly is a success whether or not the toast appeared.
package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/screenshotos/screenshotos/internal/logger"
)

const (
	notifyInterface = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyMethod    = "org.freedesktop.Notifications.Notify"
	appName         = "ScreenshotOS"
	expireMillis    = 5000
)

// Notifier posts a desktop notification.
type Notifier interface {
	Notify(summary, body, imagePath string) error
	Close() error
}

// Noop swallows notifications. Used in headless and test contexts.
type Noop struct{}

func (Noop) Notify(string, string, string) error { return nil }
func (Noop) Close() error                        { return nil }

// DBusNotifier talks to the session notification daemon.
type DBusNotifier struct {
	conn *dbus.Conn
}

// NewDBusNotifier connects to the session bus. Callers that cannot
// reach a session bus should fall back to Noop.
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBusNotifier{conn: conn}, nil
}

// Notify posts a notification, optionally with the captured image as
// its icon.
func (n *DBusNotifier) Notify(summary, body, imagePath string) error {
	obj := n.conn.Object(notifyInterface, notifyPath)

	hints := map[string]dbus.Variant{}
	if imagePath != "" {
		hints["image-path"] = dbus.MakeVariant(imagePath)
	}

	call := obj.Call(notifyMethod, 0,
		appName,
		uint32(0), // no notification to replace
		"",        // default app icon
		summary,
		body,
		[]string{}, // no actions
		hints,
		int32(expireMillis),
	)
	if call.Err != nil {
		logger.WithComponent("notify").Warn().
			Err(call.Err).
			Str("summary", summary).
			Msg("Desktop notification failed")
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}

// Close disconnects from the session bus.
func (n *DBusNotifier) Close() error {
	return n.conn.Close()
}
