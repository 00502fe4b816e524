// Package activeapp samples the foreground application. The orchestrator
// reads it before any capture UI appears, so the screenshot tool itself
// is never misidentified as the captured application.
package activeapp

// AppInfo describes the application in the foreground at sample time.
type AppInfo struct {
	Name        string `json:"name"`
	BundleID    string `json:"bundleId,omitempty"`
	WindowTitle string `json:"windowTitle,omitempty"`
}

// System is the sentinel returned when foreground sampling fails.
// Sampling failure must never block a capture.
var System = AppInfo{Name: "System"}

// Provider samples the current foreground application.
type Provider interface {
	// ActiveApp returns the foreground application, or System when the
	// query fails.
	ActiveApp() AppInfo
}

// StaticProvider returns a fixed AppInfo. Used in tests and headless runs.
type StaticProvider struct {
	Info AppInfo
}

// ActiveApp returns the configured info.
func (p StaticProvider) ActiveApp() AppInfo {
	return p.Info
}
