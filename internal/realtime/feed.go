package realtime

import (
	"encoding/json"
	"time"

	"orderflow/internal/saga"
)

// Frame is the wire shape of one saga event pushed to subscribers.
type Frame struct {
	Type   string    `json:"type"`
	Run    string    `json:"run"`
	Step   string    `json:"step,omitempty"`
	Error  string    `json:"error,omitempty"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// EventSink returns a saga event sink that serializes events into Frames and
// publishes them on the hub.
func EventSink(hub *Hub) saga.EventSink {
	return func(ev saga.Event) {
		frame := Frame{
			Type: string(ev.Type),
			Run:  ev.RunID,
			Step: ev.Step,
			At:   ev.At,
		}
		if ev.Err != nil {
			frame.Error = ev.Err.Error()
		}
		if ev.Outcome != nil {
			frame.Status = string(ev.Outcome.Status)
		}
		msg, err := json.Marshal(frame)
		if err != nil {
			return
		}
		hub.Publish(msg)
	}
}
