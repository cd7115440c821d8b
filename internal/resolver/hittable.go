// Package resolver implements the Click Resolver (spec.md §4.2): mapping a
// Critic-proposed click target onto a concrete viewport coordinate via
// DOM-extracted hittable elements, radius filtering, and — when no exact
// match exists — Assistant disambiguation.
package resolver

// HitState classifies whether a Hittable's in-viewport center actually
// hits the element or something occluding it.
type HitState string

const (
	HitStateHittable      HitState = "hittable"
	HitStateOccluded      HitState = "occluded"
	HitStateOffscreenPage HitState = "offscreen_page"
)

// Hittable is a DOM-extracted candidate click target (spec.md §3). The DOM
// walk itself lives in the browser worker (spec.md §9); this is only the
// wire shape the worker's GET_HITTABLES_VIEWPORT response is decoded into.
type Hittable struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Enabled   bool     `json:"enabled"`
	HitState  HitState `json:"hit_state"`
	Center    [2]float64 `json:"center"`
	Rect      [4]float64 `json:"rect"` // left, top, width, height
	Selector  string   `json:"selector"`
	Href      string   `json:"href,omitempty"`
	ClassName string   `json:"className,omitempty"`
}
