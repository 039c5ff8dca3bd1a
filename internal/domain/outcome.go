package domain

// OutcomeState enumerates what a provider reported for a task.
type OutcomeState int

const (
	OutcomeProcessing OutcomeState = iota
	OutcomeCompleted
	OutcomeFailed
)

// Outcome is a provider-reported task result. ResultURL is set only for
// completed outcomes, ErrorDetail only for failed ones.
type Outcome struct {
	State       OutcomeState
	ResultURL   string
	ErrorDetail string
}

// Processing returns an outcome for a task that has not finished yet.
func Processing() Outcome {
	return Outcome{State: OutcomeProcessing}
}

// Completed returns a successful outcome carrying the result reference.
func Completed(resultURL string) Outcome {
	return Outcome{State: OutcomeCompleted, ResultURL: resultURL}
}

// Failed returns a failed outcome carrying a human-readable cause.
func Failed(detail string) Outcome {
	return Outcome{State: OutcomeFailed, ErrorDetail: detail}
}

// Terminal reports whether the outcome ends the job.
func (o Outcome) Terminal() bool {
	return o.State != OutcomeProcessing
}
