package asset

// EventType identifies an asset lifecycle notification.
type EventType uint8

const (
	EventReady EventType = iota
	EventError
	EventPreReload
	EventReloaded
	EventReloadError
	EventUnloaded
	EventDispatchBegin
	EventDispatchEnd
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	case EventPreReload:
		return "pre-reload"
	case EventReloaded:
		return "reloaded"
	case EventReloadError:
		return "reload-error"
	case EventUnloaded:
		return "unloaded"
	case EventDispatchBegin:
		return "dispatch-begin"
	case EventDispatchEnd:
		return "dispatch-end"
	default:
		return "unknown"
	}
}

// Event is delivered on the owner goroutine during DispatchEvents.
type Event struct {
	Err        error
	ID         AssetID
	AssetType  TypeTag
	Generation uint64
	Status     Status
	Type       EventType
}

// Observer receives every asset event applied by the pump.
type Observer interface {
	OnAssetEvent(Event)
}

// Dropper is optionally implemented by payloads that need cleanup when
// their record is evicted or their payload is superseded by a reload.
type Dropper interface {
	Drop()
}

type eventKind uint8

const (
	evQueued eventKind = iota
	evStarted
	evCompleted
	evFailed
	evUnloaded
	evFunc
)

// queuedEvent is produced by workers (or by release paths off the pump) and
// applied by DispatchEvents.
type queuedEvent struct {
	payload any
	err     error
	fn      func()
	deps    []*Handle
	id      AssetID
	typ     TypeTag
	gen     uint64
	kind    eventKind
	publish bool
}
