package container

// Lifetime controls how often a binding's factory runs.
type Lifetime int

const (
	// Transient bindings run their factory on every Make.
	Transient Lifetime = iota

	// Singleton bindings run their factory once; the result is cached until
	// the key is rebound, forgotten or flushed.
	Singleton
)

// String returns the human-readable name of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	default:
		return "unknown"
	}
}
