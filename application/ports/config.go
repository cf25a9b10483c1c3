package ports

// Limits are the runtime-tunable business limits on the edge set.
type Limits struct {
	// MaxEdgesPerProject bounds the total edge count of one project
	MaxEdgesPerProject int

	// MaxEdgesPerTask bounds how many edges may touch a single task
	MaxEdgesPerTask int
}

// LimitsProvider exposes the current limits. Implementations may reload
// them at runtime; callers read them fresh on every mutation.
type LimitsProvider interface {
	Limits() Limits
}
