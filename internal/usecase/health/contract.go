package health

import "context"

// Pinger checks availability of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is a named search backend.
type Backend interface {
	Pinger
	Name() string
}
