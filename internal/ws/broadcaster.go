package ws

import (
	"encoding/json"
	"time"

	"autoapply/internal/domain"
)

// TransitionMessage is the wire shape of one lifecycle transition on the
// event stream.
type TransitionMessage struct {
	Type          string  `json:"type"`
	ApplicationID string  `json:"application_id"`
	JobID         string  `json:"job_id"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	Cause         string  `json:"cause"`
	Note          *string `json:"note,omitempty"`
	Timestamp     string  `json:"timestamp"`
}

// Broadcaster pushes persisted transitions to every connected dashboard.
// It satisfies the scheduler's Notifier.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) TransitionApplied(e domain.Event) {
	if b == nil || b.hub == nil {
		return
	}
	msg := TransitionMessage{
		Type:          "application_transition",
		ApplicationID: e.ApplicationID.String(),
		JobID:         e.JobID.String(),
		From:          string(e.From),
		To:            string(e.To),
		Cause:         string(e.Cause),
		Note:          e.Note,
		Timestamp:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return
	}
	b.hub.Broadcast(buf)
}
