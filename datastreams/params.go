package datastreams

import "time"

// Params are used to pass args into DataStream stages.
type Params struct {
	BufferSize int
	// SkipError keeps a SwitchMap stage running after a failed call.
	SkipError   bool
	SegmentName string
	// Interval is the quiet window used by Debounce.
	Interval time.Duration
}
