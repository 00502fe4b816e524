// Package storage persists captured images and manages their lifecycle
// on disk (save, archive, trash, restore).
package storage

import (
	"strings"
	"time"
)

// TimestampPlaceholder is the token replaced in filename templates.
const TimestampPlaceholder = "%TIMESTAMP%"

// Filename renders a capture filename from the configured template:
// the ISO-8601 UTC timestamp with colons and dots stripped, plus the
// format extension.
func Filename(template, format string, t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp := strings.NewReplacer(":", "", ".", "").Replace(iso)
	name := strings.ReplaceAll(template, TimestampPlaceholder, stamp)
	return name + "." + strings.TrimPrefix(format, ".")
}
