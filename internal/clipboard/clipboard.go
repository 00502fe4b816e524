// Package clipboard copies captured images to the system clipboard.
package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// Writer puts PNG-encoded image bytes on the clipboard.
type Writer interface {
	WriteImage(ctx context.Context, png []byte) error
}

// Noop discards clipboard writes. Used when copy-on-capture is disabled.
type Noop struct{}

func (Noop) WriteImage(context.Context, []byte) error { return nil }

// ExecWriter shells out to the session's clipboard tool: wl-copy under
// Wayland, xclip otherwise. Holding selections ourselves would require
// keeping an X window alive for the clipboard's lifetime; the external
// tools already daemonize for that.
type ExecWriter struct{}

// NewWriter picks a clipboard writer for the current session.
func NewWriter() Writer {
	return ExecWriter{}
}

func (ExecWriter) WriteImage(ctx context.Context, png []byte) error {
	name, args := clipboardCommand()
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("no clipboard tool available (%s): %w", name, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(png)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, stderr.String())
	}

	logger.WithComponent("clipboard").Debug().
		Str("tool", name).
		Int("bytes", len(png)).
		Msg("Image copied to clipboard")
	return nil
}

func clipboardCommand() (string, []string) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return "wl-copy", []string{"--type", "image/png"}
	}
	return "xclip", []string{"-selection", "clipboard", "-t", "image/png"}
}
