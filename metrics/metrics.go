package metrics

import "time"

// Event names recorded by the gateway.
const (
	EventPayment    = "payment"
	EventSettlement = "settlement"
	EventUpstream   = "upstream"
	EventRequest    = "request"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
