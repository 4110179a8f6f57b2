package timelinex

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction is wrapped by every *ConstructionError.
	ErrConstruction = errors.New("timelinex: invalid track timing")

	// ErrMutationAfterStart is returned when start, end or duration of a
	// started track is changed.
	ErrMutationAfterStart = errors.New("timelinex: started track can not be modified")

	// ErrDuplicateOrigin is returned by SetOrigin on an already bound
	// timeline or when a timeline is asked to shadow itself.
	ErrDuplicateOrigin = errors.New("timelinex: timeline already has an origin")

	// ErrShadowControl is returned by control operations on a bound shadow.
	// A shadow's time is driven entirely by its origin.
	ErrShadowControl = errors.New("timelinex: shadow timeline can not be controlled directly")

	// ErrDisposed is returned by operations on a disposed timeline.
	ErrDisposed = errors.New("timelinex: timeline disposed")

	// ErrInvalidFPS is returned by UpdateMaxFPS for non-positive values.
	ErrInvalidFPS = errors.New("timelinex: maxFPS must be greater than 0")

	// ErrInvalidConfig wraps Config validation failures.
	ErrInvalidConfig = errors.New("timelinex: invalid config")
)

// ConstructionError reports an invalid start/end/duration combination.
type ConstructionError struct {
	Field  string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("timelinex: %s %s", e.Field, e.Reason)
}

func (e *ConstructionError) Unwrap() error { return ErrConstruction }

// Phase names the track callback that failed.
type Phase string

const (
	PhaseInit   Phase = "init"
	PhaseStart  Phase = "start"
	PhaseUpdate Phase = "update"
	PhaseEnd    Phase = "end"
)

// CallbackError wraps an error returned (or a panic raised) by a track
// callback.
type CallbackError struct {
	TrackID string
	Phase   Phase
	Err     error
}

func (e *CallbackError) Error() string {
	if e.TrackID == "" {
		return fmt.Sprintf("timelinex: track on%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("timelinex: track %q on%s: %v", e.TrackID, e.Phase, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
