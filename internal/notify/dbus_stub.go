//go:build !linux

package notify

import "errors"

// NewDBusNotifier is unavailable off Linux; callers fall back to logging.
func NewDBusNotifier() (Notifier, error) {
	return nil, errors.New("session bus notifications are only supported on linux")
}
