package calltree

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedEvent marks events that violate the ingestion contract. Such
// events are rejected before any trace state changes.
var ErrMalformedEvent = errors.New("calltree: malformed event")

// Event is a single ingestion notification. EnterEvent and ExitEvent form
// a closed set of implementations.
type Event interface {
	Validate() error

	isEvent()
}

// EnterEvent reports that the traced program called a function.
//
// Arguments, like the value fields of ExitEvent, are opaque previews
// rendered by the event source. The engine stores them untouched.
type EnterEvent struct {
	Name       string
	Location   SourceLocation
	ParamNames []string
	Callsite   string
	Arguments  []string
	Time       Timestamp
}

func (EnterEvent) isEvent() {}

func (e EnterEvent) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: enter without a function name", ErrMalformedEvent)
	}
	return validateTime(e.Time)
}

// ExitEvent reports that the newest open call returned, threw or yielded.
// At most one of the three value fields may be set.
type ExitEvent struct {
	Time    Timestamp
	Return  *string
	Thrown  *string
	Yielded *string
}

func (ExitEvent) isEvent() {}

func (e ExitEvent) Validate() error {
	if err := validateTime(e.Time); err != nil {
		return err
	}
	values := 0
	for _, v := range []*string{e.Return, e.Thrown, e.Yielded} {
		if v != nil {
			values++
		}
	}
	if values > 1 {
		return fmt.Errorf("%w: exit carries %d of return/throw/yield values", ErrMalformedEvent, values)
	}
	return nil
}

func validateTime(ts Timestamp) error {
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return fmt.Errorf("%w: unusable timestamp %v", ErrMalformedEvent, ts)
	}
	return nil
}
