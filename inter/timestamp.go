package inter

import (
	"fmt"
	"time"
)

// Timestamp is a point in time in whole unix seconds, the resolution the
// claim window and the vesting delays are expressed in.
type Timestamp uint64

// FromTime converts a wall-clock time. Times before the epoch map to 0.
func FromTime(t time.Time) Timestamp {
	if t.Unix() < 0 {
		return 0
	}
	return Timestamp(t.Unix())
}

// Time converts back to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Unix returns the timestamp as int64 seconds.
func (t Timestamp) Unix() int64 {
	return int64(t)
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339)
}

// Window is the claim window. It is half-open: Start is inside the window,
// End is not.
type Window struct {
	Start Timestamp
	End   Timestamp
}

// Valid reports whether Start <= End.
func (w Window) Valid() bool {
	return w.Start <= w.End
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t Timestamp) bool {
	return t >= w.Start && t < w.End
}

// NotYetOpen reports whether t is before Start.
func (w Window) NotYetOpen(t Timestamp) bool {
	return t < w.Start
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start, w.End)
}
