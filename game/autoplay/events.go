package autoplay

import (
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
)

// EventType identifies an orchestrator event.
type EventType string

const (
	EventStarted    EventType = "started"
	EventStopped    EventType = "stopped"
	EventProgress   EventType = "progress"
	EventModelReady EventType = "model_ready"
)

// Event is delivered to OnEvent listeners.
type Event struct {
	Type     EventType  `json:"type"`
	Time     time.Time  `json:"time"`
	RunID    string     `json:"run_id,omitempty"`
	Mode     agent.Mode `json:"mode,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Moves    int        `json:"moves,omitempty"`
	EMAMs    float64    `json:"ema_ms,omitempty"`
	Received int64      `json:"received,omitempty"`
	Total    int64      `json:"total,omitempty"`
}
