package sources

// Params configures a Sourcer.
type Params struct {
	BufferSize int
	// Replay makes a Subject hand its latest value to every new subscriber.
	Replay bool
}
