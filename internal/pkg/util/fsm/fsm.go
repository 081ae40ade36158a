package fsm

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/voicerover-io/voicerover/pkg/log"
)

// LogTransitions returns an enter_state callback that records every state
// change on the given logger.
func LogTransitions(logger log.Logger) fsm.Callback {
	return func(_ context.Context, event *fsm.Event) {
		logger.Debug("state transition", "from", event.Src, "to", event.Dst, "event", event.Event)
	}
}
