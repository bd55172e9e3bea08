package event

import (
	"errors"
	"fmt"
)

// Domain errors for the event package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, event.ErrBusClosed) {
//	    // shut down the consumer loop
//	}
var (
	// ErrBusClosed is returned by Recv once the bus has shut down and the
	// subscriber has drained all retained events.
	ErrBusClosed = errors.New("event: bus closed")

	// ErrSubscriptionClosed is returned by Recv on a closed subscription.
	ErrSubscriptionClosed = errors.New("event: subscription closed")

	// ErrInvalidEvent is returned when event validation fails.
	ErrInvalidEvent = errors.New("event: invalid")
)

// LagError reports that a subscriber fell behind the ring buffer and
// missed events. The subscription remains usable: its cursor has been
// repositioned to the oldest retained event, so the next Recv resumes
// from there.
type LagError struct {
	// Missed is the number of events overwritten before the subscriber
	// could read them.
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("event: subscriber lagged, missed %d events", e.Missed)
}
