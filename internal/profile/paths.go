package profile

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory, mainly for tests and kiosk devices
// with a read-only home.
const HomeEnv = "CAMLOG_HOME"

// BaseDir returns $CAMLOG_HOME or ~/.camlog.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".camlog")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the control socket path for a profile.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// DBPath returns the profile's SQLite database (snapshot + photos).
func DBPath(name string) string {
	return filepath.Join(Dir(name), "camlog.db")
}

// PhotoDir returns the default directory for the filesystem photo store.
func PhotoDir(name string) string {
	return filepath.Join(Dir(name), "photos")
}

// KeyPath returns the default age identity used to seal photos at rest.
func KeyPath(name string) string {
	return filepath.Join(Dir(name), "photos.key")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "camlogd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
