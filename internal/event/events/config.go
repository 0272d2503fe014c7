package events

import "github.com/dshills/broadcaster/internal/event"

// Service event ids.
const (
	// ConfigReloaded is posted after the configuration file was reloaded
	// and applied.
	ConfigReloaded event.EventID = -1

	// ConfigReloadFailed is posted when a reload was rejected and the
	// previous configuration kept.
	ConfigReloadFailed event.EventID = -2

	// SuspendChanged is posted when the suspend flag is changed through
	// the control surface.
	SuspendChanged event.EventID = -3

	// AllowListChanged is posted when the allow-list is replaced or cleared.
	AllowListChanged event.EventID = -4
)

// Names maps service ids to short names for logs.
var Names = map[event.EventID]string{
	ConfigReloaded:     "config.reloaded",
	ConfigReloadFailed: "config.reload_failed",
	SuspendChanged:     "suspend.changed",
	AllowListChanged:   "allow_list.changed",
}

// Name returns the service name of id, or its decimal form.
func Name(id event.EventID) string {
	if n, ok := Names[id]; ok {
		return n
	}
	return id.String()
}

// IsService reports whether id is reserved for service events.
func IsService(id event.EventID) bool {
	return id < 0
}

// ConfigReloadedPayload is the payload of ConfigReloaded.
type ConfigReloadedPayload struct {
	// Path is the file that was loaded.
	Path string

	// AllowList is the allow-list now in effect.
	AllowList []event.EventID

	// LogLevel is the log level now in effect.
	LogLevel string
}

// ConfigReloadFailedPayload is the payload of ConfigReloadFailed.
type ConfigReloadFailedPayload struct {
	Path string
	Err  error
}

// SuspendChangedPayload is the payload of SuspendChanged.
type SuspendChangedPayload struct {
	Suspended bool
}

// AllowListChangedPayload is the payload of AllowListChanged.
type AllowListChangedPayload struct {
	// IDs is the new allow-list; empty means cleared.
	IDs []event.EventID
}

// AsConfigReloaded extracts a ConfigReloadedPayload.
func AsConfigReloaded(payload []any) (ConfigReloadedPayload, bool) {
	return first[ConfigReloadedPayload](payload)
}

// AsConfigReloadFailed extracts a ConfigReloadFailedPayload.
func AsConfigReloadFailed(payload []any) (ConfigReloadFailedPayload, bool) {
	return first[ConfigReloadFailedPayload](payload)
}

// AsSuspendChanged extracts a SuspendChangedPayload.
func AsSuspendChanged(payload []any) (SuspendChangedPayload, bool) {
	return first[SuspendChangedPayload](payload)
}

// AsAllowListChanged extracts an AllowListChangedPayload.
func AsAllowListChanged(payload []any) (AllowListChangedPayload, bool) {
	return first[AllowListChangedPayload](payload)
}

func first[T any](payload []any) (T, bool) {
	var zero T
	if len(payload) == 0 {
		return zero, false
	}
	v, ok := payload[0].(T)
	return v, ok
}
