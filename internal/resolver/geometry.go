package resolver

import "math"

// centerDistance returns the Euclidean distance between two points.
func centerDistance(ax, ay, bx, by float64) float64 {
	dx, dy := ax-bx, ay-by
	return math.Sqrt(dx*dx + dy*dy)
}

// rectPointDistance returns the distance from point (px,py) to the nearest
// edge or interior point of rect (left,top,width,height) — 0 if the point
// is inside the rect.
func rectPointDistance(rect [4]float64, px, py float64) float64 {
	left, top, w, h := rect[0], rect[1], rect[2], rect[3]
	right, bottom := left+w, top+h

	dx := math.Max(left-px, math.Max(0, px-right))
	dy := math.Max(top-py, math.Max(0, py-bottom))
	return math.Sqrt(dx*dx + dy*dy)
}

// withinRadius reports whether h's center lies within radius of (cx,cy),
// OR h's rect lies within radius of the point (box-to-point distance) —
// spec.md §4.2 step 3.
func withinRadius(h Hittable, cx, cy, radius float64) bool {
	if centerDistance(h.Center[0], h.Center[1], cx, cy) <= radius {
		return true
	}
	return rectPointDistance(h.Rect, cx, cy) <= radius
}

// distanceToPoint is the metric used both for the radius filter's
// "20 nearest" fallback and for tie-breaking exact matches: the minimum of
// center-distance and rect-distance to the target point.
func distanceToPoint(h Hittable, cx, cy float64) float64 {
	return math.Min(
		centerDistance(h.Center[0], h.Center[1], cx, cy),
		rectPointDistance(h.Rect, cx, cy),
	)
}
