// Package fault implements the failure policy of the write-back engine:
// a small allow-list of benign errors is tolerated at the task-execution
// boundary, anything else escaping a scan or task body is treated as
// unrecoverable and terminates the process rather than continuing on a
// possibly corrupt shared ring.
package fault

import (
	"errors"

	"github.com/rs/zerolog/log"
)

var (
	// ErrStreamGone marks an operation against a stream that was torn
	// down between scheduling and execution.
	ErrStreamGone = errors.New("stream no longer resident")

	// ErrStreamBusy marks an operation that is legitimately not possible
	// in the stream's current state; the task is abandoned and the next
	// scan retries.
	ErrStreamBusy = errors.New("stream state does not permit operation")
)

// Expected reports whether err belongs to the benign allow-list.
func Expected(err error) bool {
	return errors.Is(err, ErrStreamGone) || errors.Is(err, ErrStreamBusy)
}

// Bugcheck logs the diagnostic and terminates the process.
func Bugcheck(err error, msg string) {
	log.Fatal().Err(err).Msg("writeback bugcheck: " + msg)
}

// Recovered converts a recovered panic value into the fatal path.
func Recovered(v any, msg string) {
	if err, ok := v.(error); ok {
		Bugcheck(err, msg)
		return
	}
	log.Fatal().Interface("panic", v).Msg("writeback bugcheck: " + msg)
}
