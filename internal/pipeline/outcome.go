package pipeline

// Step names the stage a message reached.
type Step string

const (
	StepParse    Step = "parse"
	StepIdentity Step = "identity"
	StepOracle   Step = "oracle"
	StepPersist  Step = "persist"
)

// Class splits failures into the two behaviors the consumer runtime knows:
// settle the message (terminal) or leave it for redelivery (retriable).
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassRetriable Class = "retriable"
)

// Outcome is the result of processing one message, as plain data. The commit
// decision is derived from it rather than from which error type was thrown,
// so the redeliver/record boundary is testable directly.
type Outcome struct {
	Step   Step
	Class  Class
	Status string // persisted verdict status, or "" when nothing was stored
	Detail string
	Err    error
}

func success(status string) Outcome {
	return Outcome{Step: StepPersist, Class: ClassTerminal, Status: status}
}

func terminal(step Step, detail string, err error) Outcome {
	return Outcome{Step: step, Class: ClassTerminal, Detail: detail, Err: err}
}

func retriable(step Step, detail string, err error) Outcome {
	return Outcome{Step: step, Class: ClassRetriable, Detail: detail, Err: err}
}

// Settled reports whether the offset should advance past this message.
func (o Outcome) Settled() bool {
	return o.Class == ClassTerminal
}
