// Package progress models the event stream emitted by long-running
// operations (index rebuild, export, highlights). Pipelines report tagged
// events through a Sink; the wire encoding lives with the transport, not here.
package progress

type Kind string

const (
	KindStatus   Kind = "status"
	KindFetching Kind = "fetching"
	KindProgress Kind = "progress"
	KindBatch    Kind = "batch"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

type Event interface {
	Kind() Kind
	Data() any
}

// Sink receives events in emission order. A nil Sink is valid and drops
// everything, so pipelines never need to nil-check.
type Sink func(Event)

func (s Sink) Emit(ev Event) {
	if s != nil {
		s(ev)
	}
}

type Status struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

type Fetching struct {
	Page  int `json:"page"`
	Count int `json:"count"`
}

type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	Current   string `json:"current,omitempty"`
}

type Batch struct {
	Index   int `json:"batch"`
	Total   int `json:"total_batches"`
	Winners int `json:"winners_so_far"`
}

type Complete struct {
	Payload any `json:"payload"`
}

type Error struct {
	Message string `json:"message"`
}

func (Status) Kind() Kind   { return KindStatus }
func (Fetching) Kind() Kind { return KindFetching }
func (Progress) Kind() Kind { return KindProgress }
func (Batch) Kind() Kind    { return KindBatch }
func (Complete) Kind() Kind { return KindComplete }
func (Error) Kind() Kind    { return KindError }

func (e Status) Data() any   { return e }
func (e Fetching) Data() any { return e }
func (e Progress) Data() any { return e }
func (e Batch) Data() any    { return e }
func (e Complete) Data() any { return e.Payload }
func (e Error) Data() any    { return e }

// Pct is the integer percentage used by Progress events.
func Pct(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return processed * 100 / total
}
