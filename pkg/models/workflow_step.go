package models

// WorkflowStep is one node in a workflow: a capability call, its gating
// conditions, retry/timeout policy, and outgoing edges. NextStages lists the
// permissible next-step ids; OnSuccess/OnError override edge selection.
type WorkflowStep struct {
	ID          string       `json:"id"         validate:"required"`
	Capability  string       `json:"capability" validate:"required"`
	Input       StepInput    `json:"input,omitempty"`
	Conditions  []Condition  `json:"conditions,omitempty"  validate:"omitempty,dive"`
	RetryPolicy *RetryPolicy `json:"retry_policy,omitempty"`
	Timeout     Duration     `json:"timeout,omitempty"`
	OnSuccess   *string      `json:"on_success,omitempty"`
	OnError     *string      `json:"on_error,omitempty"`
	NextStages  []string     `json:"next_stages,omitempty"`
}

// MaxAttempts returns the attempt budget for the step, 1 when no policy is
// attached.
func (s *WorkflowStep) MaxAttempts() int {
	if s.RetryPolicy == nil || s.RetryPolicy.MaxAttempts < 1 {
		return 1
	}

	return s.RetryPolicy.MaxAttempts
}

// SuccessTarget is the step to advance to after success: the OnSuccess
// override if set, otherwise the first listed next stage, otherwise "".
func (s *WorkflowStep) SuccessTarget() string {
	if s.OnSuccess != nil {
		return *s.OnSuccess
	}

	return s.FirstNextStage()
}

func (s *WorkflowStep) FirstNextStage() string {
	if len(s.NextStages) == 0 {
		return ""
	}

	return s.NextStages[0]
}
