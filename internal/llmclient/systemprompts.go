package llmclient

// System prompts for the three model calls the spec defines (spec.md
// §4.4). The exact wording is an external collaborator's concern (spec.md
// §1 Non-goals); these are the minimal, spec-faithful defaults, overridable
// via ProviderConfig in a future revision if a deployment needs to tune
// them.
const (
	systemPromptCritic = "You are the Critic for an autonomous web-browsing agent. " +
		"Given a goal, the current screenshot, and recent history, respond with a single JSON " +
		"object describing the next action. Allowed actions: accept, click_by_text_role, scroll, " +
		"back, navigate, resend, stop. Never emit accept unless the candidate is visibly on-screen. " +
		"Never emit stop while an override context is active."

	systemPromptBootstrapCritic = "You are the URL Bootstrap Critic. Given a goal and the current " +
		"screenshot, decide whether to navigate to a starting URL, proceed with the current page, " +
		"or resend. Respond with a single JSON object whose action is one of: navigate, proceed, resend."

	systemPromptActionDisambiguator = "You are the Action Disambiguator. Given a goal, a proposed " +
		"click target, and a numbered list of candidate elements with the full screenshot, choose the " +
		"candidate that matches the target, or report that none match. Respond with a single JSON " +
		"object: action (click, accept, scroll, stop, or unknown), reason, confidence (0..1), and for " +
		"a click: center as [x,y] and candidate_id referring to one of the submitted ids."
)
