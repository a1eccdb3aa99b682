package event

import "time"

// Type names an event kind.
type Type string

const (
	TypeCycleRequested Type = "CYCLE_REQUESTED"
	TypeBatchRequested Type = "BATCH_REQUESTED"
)

// Event is anything the scheduler consumes. Seq is assigned on submission
// and is strictly increasing.
type Event interface {
	GetSeq() uint64
	GetType() Type
	GetTs() time.Time
}

// BaseEvent carries the fields common to all events.
type BaseEvent struct {
	Seq uint64    `json:"seq"`
	Ts  time.Time `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64   { return e.Seq }
func (e BaseEvent) GetTs() time.Time { return e.Ts }

// CycleRequested asks for one trading cycle of UserID on Symbol.
type CycleRequested struct {
	BaseEvent
	UserID string `json:"user_id"`
	Symbol string `json:"symbol"`
}

func (*CycleRequested) GetType() Type { return TypeCycleRequested }

// BatchRequested asks for a cycle per symbol for UserID.
type BatchRequested struct {
	BaseEvent
	UserID  string   `json:"user_id"`
	Symbols []string `json:"symbols"`
}

func (*BatchRequested) GetType() Type { return TypeBatchRequested }
