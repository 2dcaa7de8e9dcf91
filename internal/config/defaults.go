package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/cornerknock/
//   - Linux:   ~/.local/share/cornerknock/
//   - Windows: %APPDATA%\cornerknock\
//
// Falls back to ~/.cornerknock if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(homeDir, "Library", "Application Support", "cornerknock")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return fallbackDataDir()
		}
		return filepath.Join(appData, "cornerknock")
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fallbackDataDir()
			}
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
		return filepath.Join(dataHome, "cornerknock")
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return PlatformDataDir()
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fallbackDataDir()
			}
			configHome = filepath.Join(homeDir, ".config")
		}
		return filepath.Join(configHome, "cornerknock")
	}
}

// PlatformRuntimeDir returns the directory for sockets and other transient
// runtime files.
func PlatformRuntimeDir() string {
	if runtime.GOOS == "linux" {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, "cornerknock")
		}
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("cornerknock-%d", os.Getuid()))
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "cornerknock.toml")
}

func fallbackDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cornerknock"
	}
	return filepath.Join(homeDir, ".cornerknock")
}
