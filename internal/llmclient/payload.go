package llmclient

// Goal carries the run's prompt and any active override context
// (spec.md §4.4 userPayload.goal).
type Goal struct {
	OriginalPrompt string `json:"original_prompt"`
	NewContext     string `json:"new_context,omitempty"`
}

// RunContext carries the page's current state.
type RunContext struct {
	CurrentURL    string `json:"current_url,omitempty"`
	ContextActive bool   `json:"context_active"`
	ContextStep   int    `json:"context_step"`
}

// PlanWindow is omitted entirely for the bootstrap variant (spec.md §4.4).
type PlanWindow struct {
	PlannedStep string   `json:"planned_step,omitempty"`
	NextSteps   []string `json:"next_steps,omitempty"`
}

// CriticPayload is the user-message JSON body sent to the Critic
// (spec.md §4.4 userPayload).
type CriticPayload struct {
	Goal           Goal        `json:"goal"`
	Context        RunContext  `json:"context"`
	PlanWindow     *PlanWindow `json:"plan_window,omitempty"`
	CompleteHistory []string   `json:"complete_history"`
}

// LastN trims history to at most n entries, per spec.md §4.4
// "complete_history: last 20 entries".
func LastN(history []string, n int) []string {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// AssistantPayload is the payload sent to the Assistant for click
// disambiguation (spec.md §4.4).
type AssistantPayload struct {
	Goal       string          `json:"goal"`
	Target     any             `json:"target"`
	Candidates []CandidateView `json:"candidates"`
}

// CandidateView is the trimmed hittable shape sent to the Assistant —
// defined here (not imported from internal/resolver) to keep the wire
// payload independent of the resolver's internal Hittable representation.
type CandidateView struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Role   string     `json:"role"`
	Center [2]float64 `json:"center"`
}
