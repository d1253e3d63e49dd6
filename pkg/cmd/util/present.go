package util

import (
	"github.com/mpapenbr/gforce-sculpture/pkg/model"
	"github.com/mpapenbr/gforce-sculpture/pkg/progress"
	"github.com/mpapenbr/gforce-sculpture/pkg/tracker"
)

// ViewFor applies a tracker event to the current progress view
func ViewFor(prev progress.View, e tracker.Event) progress.View {
	switch e.Kind {
	case tracker.EventProgress:
		return progress.Next(prev, e.Progress)
	case tracker.EventTransition:
		switch e.State {
		case tracker.StateSubmitting:
			ret := progress.Idle()
			ret.Title = "Submitting"
			return ret
		case tracker.StateStreamConnecting:
			if prev.Phase == progress.PhaseIdle {
				return progress.Submitted(e.TaskID)
			}
		case tracker.StateSuccess:
			return progress.Succeeded(prev, e.Cached)
		case tracker.StateFailure, tracker.StateCancelled:
			return progress.Failed(prev, e.Err)
		}
	}
	return prev
}

// relayMessage converts a tracker event into a stream message for other
// subscribers. Events without a counterpart return nil.
func relayMessage(e tracker.Event) *model.StreamMessage {
	switch e.Kind {
	case tracker.EventProgress:
		return &model.StreamMessage{
			Type:        model.MTProgress,
			TaskID:      e.TaskID,
			Stage:       e.Progress.Stage,
			Progress:    e.Progress.Percent,
			Message:     e.Progress.Message,
			SessionInfo: e.Progress.Session,
		}
	case tracker.EventTransition:
		switch e.State {
		case tracker.StateSuccess:
			// followers fetch the result over REST
			return &model.StreamMessage{Type: model.MTSuccess, TaskID: e.TaskID}
		case tracker.StateFailure, tracker.StateCancelled:
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			return &model.StreamMessage{Type: model.MTError, TaskID: e.TaskID, Error: msg}
		}
	}
	return nil
}
