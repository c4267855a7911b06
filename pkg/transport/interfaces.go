package transport

import (
	"context"
	"errors"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
)

// Transport errors.
var (
	ErrDeviceNotFound         = errors.New("device not found")
	ErrConnectFailed          = errors.New("connect failed")
	ErrDisconnected           = errors.New("transport disconnected")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrAlreadyScanning        = errors.New("scan already in progress")
)

// ScanFilter narrows a scan to records advertising one of the given 16-bit
// service UUIDs. An empty filter delivers every record.
type ScanFilter struct {
	ServiceUUIDs []uint16
}

// Matches reports whether a record passes the filter.
func (f ScanFilter) Matches(rec advert.Record) bool {
	if len(f.ServiceUUIDs) == 0 {
		return true
	}
	for _, u := range f.ServiceUUIDs {
		if rec.HasServiceUUID(u) {
			return true
		}
		if _, ok := rec.ServiceData[u]; ok {
			return true
		}
	}
	return false
}

// Characteristic is an opaque handle to a discovered GATT characteristic.
type Characteristic interface {
	// UUID returns the 16-bit characteristic UUID.
	UUID() uint16
}

// Connection represents an open link to a single device.
// Implementations must preserve delivery order per characteristic.
type Connection interface {
	// DiscoverCharacteristics returns the characteristics of a service,
	// keyed by 16-bit UUID.
	DiscoverCharacteristics(serviceUUID uint16) (map[uint16]Characteristic, error)

	// Write writes bytes to a characteristic. With withResponse set the
	// call blocks until the device acknowledges or ctx ends.
	Write(ctx context.Context, c Characteristic, data []byte, withResponse bool) error

	// Notifications returns the stream of notification payloads for a
	// characteristic. The channel closes when the connection closes.
	Notifications(c Characteristic) (<-chan []byte, error)

	// Close tears down the connection.
	Close() error
}

// Transport is the radio capability consumed by the engine.
type Transport interface {
	// Scan streams advertisement records matching the filter until ctx
	// ends. The returned channel closes when scanning stops.
	Scan(ctx context.Context, filter ScanFilter) (<-chan advert.Record, error)

	// Connect opens a connection to the device with the given identity.
	Connect(ctx context.Context, identity string) (Connection, error)

	// Disconnect closes any open connection to the identity.
	Disconnect(identity string) error
}
