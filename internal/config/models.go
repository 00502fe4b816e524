package config

// Shortcuts holds the global hotkey bindings in cross-platform modifier
// syntax (e.g. "CommandOrControl+Shift+4").
type Shortcuts struct {
	FullScreen  string `json:"fullScreen"`
	AreaCapture string `json:"areaCapture"`
}

// Config is the persisted application configuration.
type Config struct {
	SaveDirectory       string    `json:"saveDirectory"`
	ArchiveDirectory    string    `json:"archiveDirectory"`
	TrashDirectory      string    `json:"trashDirectory"`
	FilenameTemplate    string    `json:"filenameTemplate"`
	FileFormat          string    `json:"fileFormat"`
	DeleteConfirmation  bool      `json:"deleteConfirmation"`
	ArchiveConfirmation bool      `json:"archiveConfirmation"`
	CopyToClipboard     bool      `json:"copyToClipboard"`
	ServerPort          int       `json:"serverPort"`
	LogLevel            string    `json:"logLevel"`
	Shortcuts           Shortcuts `json:"shortcuts"`

	// Legacy field - older releases stored a single hotkey. Read during
	// migration, no longer written.
	LegacyShortcut string `json:"shortcut,omitempty"`
}
