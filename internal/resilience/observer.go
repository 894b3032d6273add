package resilience

// Outcome labels how one dependency call ended.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailure      Outcome = "failure"
	OutcomeFallback     Outcome = "fallback"
	OutcomeCircuitOpen  Outcome = "circuit_open"
	OutcomeBulkheadFull Outcome = "bulkhead_full"
)

// Observer receives attempt and outcome counts keyed by dependency name.
type Observer interface {
	// RecordAttempt is called once per network attempt, retries included.
	RecordAttempt(dependency string)
	RecordOutcome(dependency string, outcome Outcome)
}

type multiObserver []Observer

// Observers fans out to every non-nil observer.
func Observers(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) RecordAttempt(dependency string) {
	for _, o := range m {
		o.RecordAttempt(dependency)
	}
}

func (m multiObserver) RecordOutcome(dependency string, outcome Outcome) {
	for _, o := range m {
		o.RecordOutcome(dependency, outcome)
	}
}

type nopObserver struct{}

func (nopObserver) RecordAttempt(string)          {}
func (nopObserver) RecordOutcome(string, Outcome) {}
