package harness

// Trace event results.
const (
	ResultOK            = "ok"
	ResultFailed        = "failed"
	ResultRecreated     = "recreated"
	ResultReinitialized = "reinitialized"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Op     string `json:"op"`
	Role   string `json:"role,omitempty"`
	Ref    string `json:"ref,omitempty"`
	ID     string `json:"id,omitempty"`
	Result string `json:"result"`

	// Commits lists, in order, the roles whose level committed a non-empty
	// change set during the step.
	Commits []string `json:"commits,omitempty"`

	// Scheduled is the number of objects a delete_objects step scheduled.
	Scheduled int `json:"scheduled,omitempty"`

	// Generation is the active manager generation after destroy and reinit.
	Generation uint64 `json:"generation,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, setup included.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Commits is the role of every level commit across the run.
	Commits []string `json:"commits"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Commits: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
