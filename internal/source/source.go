// Package source defines the contract the bridge expects from the live
// monitoring engine: a queryable object registry and a set of change-event
// callbacks. The engine itself is out of scope; this package only pins down
// the shape a concrete implementation (or a test double) must satisfy.
package source

import "icingadb.dev/redisbridge/internal/objects"

// Registry enumerates every configuration object currently held by the
// monitoring engine. The engine guarantees a consistent snapshot for the
// duration of one Registry call.
type Registry interface {
	// Types lists every configuration type the engine currently holds
	// objects for.
	Types() []objects.Type

	// ObjectsOf returns every live object of the given type. The slice is
	// read-only for the duration of the caller's iteration.
	ObjectsOf(t objects.Type) []objects.Object

	// CommandTimeout resolves the configured timeout of the check, event,
	// or notification command named name. ok is false if no command with
	// that name is currently held by the engine.
	CommandTimeout(name string) (timeout float64, ok bool)
}

// ChangeEvent is the payload of an object lifecycle callback.
type ChangeEvent struct {
	Object  objects.Object
	Active  bool
	Deleted bool
}

// StateEvent is the payload of a checkable state-affecting callback.
type StateEvent struct {
	Checkable objects.Checkable
}

// DowntimeEvent is the payload of a downtime lifecycle callback.
type DowntimeEvent struct {
	Downtime  *objects.Downtime
	Checkable objects.Checkable
}

// EventStream is the subscription surface the event router consumes.
// A concrete engine adapter fans its native callbacks into these channels;
// the router never blocks engine internals since it only reads from them.
type EventStream interface {
	// StateChanges fires on check result state changes.
	StateChanges() <-chan StateEvent
	// AcknowledgementsCleared fires when an acknowledgement is removed.
	AcknowledgementsCleared() <-chan StateEvent
	// ActiveOrVersionChanges fires on object activation, deactivation, and
	// version bumps (config reloads touching an existing object).
	ActiveOrVersionChanges() <-chan ChangeEvent
	// Downtimes fires on downtime start, trigger, and removal.
	Downtimes() <-chan DowntimeEvent
	// Close unsubscribes from the engine, releasing the channels above.
	// Implementations must be safe to call once the underlying engine has
	// already shut down.
	Close()
}

// ConfigObjectDeleted is the identity extension marker the engine attaches
// to an object once it has been permanently removed from the configuration
// (as opposed to merely deactivated, e.g. during a reload). Objects that
// are inactive without this marker should not be deleted from Redis.
type ConfigObjectDeleted interface {
	ConfigObjectDeleted() bool
}
