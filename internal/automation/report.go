package automation

import (
	"fmt"
	"strings"

	"kashi/pkg/task"
)

type Outcome struct {
	Task task.Task
	Err  error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Report collects one outcome per automation task in input order.
type Report struct {
	Outcomes []Outcome
}

func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Summary renders the report for the user, e.g.
// "3 of 4 actions completed; failed: close whatsapp".
func (r Report) Summary() string {
	total := len(r.Outcomes)
	if total == 0 {
		return ""
	}

	failed := r.Failed()
	if len(failed) == 0 {
		if total == 1 {
			return "Done: " + r.Outcomes[0].Task.String() + "."
		}
		return fmt.Sprintf("All %d actions completed.", total)
	}

	names := make([]string, len(failed))
	for i, o := range failed {
		names[i] = o.Task.String()
	}

	return fmt.Sprintf("%d of %d actions completed; failed: %s",
		total-len(failed), total, strings.Join(names, ", "))
}
