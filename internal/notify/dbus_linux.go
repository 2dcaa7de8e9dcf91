//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	// BusName is the well-known name the daemon claims on the session bus.
	BusName = "dev.cornerknock.Daemon"
	// ObjectPath is where the daemon object lives.
	ObjectPath = dbus.ObjectPath("/dev/cornerknock/Daemon")
	// InterfaceName is the signal interface.
	InterfaceName = "dev.cornerknock.Daemon"
	// SignalMatched is emitted once per completed knock sequence.
	SignalMatched = InterfaceName + ".SequenceMatched"
)

// DBusNotifier emits SequenceMatched signals on the session bus.
type DBusNotifier struct {
	conn *dbus.Conn
}

// NewDBusNotifier connects to the session bus and claims the daemon's
// well-known name. A second daemon instance fails here rather than emitting
// signals under an anonymous name.
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", BusName)
	}

	return &DBusNotifier{conn: conn}, nil
}

// Notify emits the SequenceMatched signal with the sequence, unix-nanosecond
// timestamp and event source.
func (n *DBusNotifier) Notify(ev Event) error {
	err := n.conn.Emit(ObjectPath, SignalMatched,
		ev.Sequence, ev.Timestamp.UnixNano(), ev.Source)
	if err != nil {
		return fmt.Errorf("emit %s: %w", SignalMatched, err)
	}
	return nil
}

// Close releases the bus name and closes the connection.
func (n *DBusNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	if _, err := n.conn.ReleaseName(BusName); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}
