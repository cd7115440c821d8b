package protocol

// ProtocolVersion is bumped whenever the wire shape of a Remote Browser
// Driver command, control-plane method, or brain HTTP route changes in a
// way a connected worker or caller needs to detect.
const ProtocolVersion = 1

// Remote Browser Driver command names. These are the verbs the brain sends
// down the agent-pool connection to a worker; the worker replies with a
// Response carrying the same id.
//
// Organized by where they sit in the Control Loop: Bootstrap runs once per
// run, Step runs once per iteration. Handshake/ping/pong are a separate,
// lower-level envelope concern — see internal/driver's frameType.
const (
	// Bootstrap
	CmdNavigate   = "navigate"
	CmdScreenshot = "screenshot"
	CmdHittables  = "hittables"

	// Step (action dispatch, spec.md §3 Decision.action)
	CmdClick            = "click"
	CmdType             = "type"
	CmdScroll           = "scroll"
	CmdKeyPress         = "key_press"
	CmdClearActiveInput = "clear_active_input"
	CmdPressEnter       = "press_enter"
	CmdWait             = "wait"
	CmdGoBack           = "go_back"
	CmdGoForward        = "go_forward"
	CmdReload           = "reload"
	CmdExtractDOM       = "extract_dom"
)

// Control-plane method names (spec.md §4.1/§5 pause/resume/abort surface),
// exposed over the separate coder/websocket control-plane channel rather
// than the agent-pool transport above.
const (
	MethodRequestPause   = "run.pause.request"
	MethodSupplyContext  = "run.context.supply"
	MethodAbortRun       = "run.abort"
	MethodRunStatus      = "run.status"
	MethodRunSubscribe   = "run.subscribe"
)

// Brain HTTP route paths (spec.md §6).
const (
	RouteHealthz         = "/healthz"
	RouteBrainBootstrap  = "/v1/brain/bootstrap"
	RouteBrainCritic     = "/v1/brain/critic"
	RouteBrainAssistant  = "/v1/brain/assistant"
)

// Control-plane WebSocket route (SPEC_FULL §4.3 addition), distinct from
// the agent-pool's own WS endpoint.
const RouteControlPlane = "/v1/control"
