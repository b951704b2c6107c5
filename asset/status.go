package asset

import (
	"fmt"
	"strings"
)

// Status is the load state of a record.
type Status uint8

const (
	StatusNotLoaded Status = iota
	StatusQueued
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNotLoaded:
		return "NotLoaded"
	case StatusQueued:
		return "Queued"
	case StatusLoading:
		return "Loading"
	case StatusReady:
		return "Ready"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// LoadBehavior controls whether referencing an asset from another asset's
// deserialization triggers a nested load.
type LoadBehavior uint8

const (
	// QueueLoad submits the referenced asset independently; the parent does not wait.
	QueueLoad LoadBehavior = iota
	// PreLoad loads the referenced asset before the parent completes.
	PreLoad
	// NoLoad only takes a reference.
	NoLoad
)

// DefaultLoadBehavior is used when none is given.
const DefaultLoadBehavior = QueueLoad

func (b LoadBehavior) String() string {
	switch b {
	case QueueLoad:
		return "queue"
	case PreLoad:
		return "preload"
	case NoLoad:
		return "noload"
	default:
		return fmt.Sprintf("LoadBehavior(%d)", uint8(b))
	}
}

// ParseLoadBehavior parses the names produced by String.
func ParseLoadBehavior(s string) (LoadBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queue", "queueload", "default":
		return QueueLoad, nil
	case "preload":
		return PreLoad, nil
	case "noload", "none":
		return NoLoad, nil
	}
	return QueueLoad, fmt.Errorf("unknown load behavior %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (b LoadBehavior) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *LoadBehavior) UnmarshalText(text []byte) error {
	parsed, err := ParseLoadBehavior(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
