package processor

// BypassState is the processed/raw routing state of the pipeline.
//
// The legal transitions form a single cycle:
//
//	Active → FadingOut → Bypassed → FadingIn → Active
//
// Transitions happen only through the methods below, which return the next
// state; a direct Active→Bypassed flip (or any other shortcut) is not
// expressible. The fading states blend processed and raw signal with an
// equal-power crossfade so toggling bypass never clicks.
type BypassState int

const (
	// BypassActive routes the fully processed signal.
	BypassActive BypassState = iota
	// Bypassed routes the raw input untouched, with zero analysis cost.
	Bypassed
	// FadingOut is the transition from processed toward raw.
	FadingOut
	// FadingIn is the transition from raw back toward processed.
	FadingIn
)

// String implements fmt.Stringer for log output.
func (s BypassState) String() string {
	switch s {
	case BypassActive:
		return "active"
	case Bypassed:
		return "bypassed"
	case FadingOut:
		return "fading_out"
	case FadingIn:
		return "fading_in"
	default:
		return "unknown"
	}
}

// applyRequest reconciles the state with the control surface's bypass
// request. It returns the next state and whether a new crossfade starts.
// Requests arriving mid-fade are ignored until the fade completes; the
// request is re-read every frame so the state still converges.
func (s BypassState) applyRequest(bypassRequested bool) (BypassState, bool) {
	switch {
	case s == BypassActive && bypassRequested:
		return FadingOut, true
	case s == Bypassed && !bypassRequested:
		return FadingIn, true
	default:
		return s, false
	}
}

// completeFade advances a fading state to its terminal state once the
// crossfade window is exhausted. Non-fading states are returned unchanged.
func (s BypassState) completeFade() BypassState {
	switch s {
	case FadingOut:
		return Bypassed
	case FadingIn:
		return BypassActive
	default:
		return s
	}
}
