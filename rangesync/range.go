package rangesync

// Range is a half-open interval over keys with wrap-around semantics:
//
//   - X == Y: the whole set ("all"); every key is contained.
//   - X < Y: the normal half-open interval [X, Y).
//   - X > Y: the wrap-around complement [X, inf) U (-inf, Y), i.e. the set
//     of all keys except [Y, X).
//
// The three cases are disjoint and total: every (range, key) pair falls
// into exactly one of them. Wrap-around ranges are first-class; they are
// never normalized into a pair of ordinary ranges.
type Range struct {
	X, Y Ordered
}

// NewRange constructs a Range from its endpoints.
func NewRange(x, y Ordered) Range {
	return Range{X: x, Y: y}
}

// All returns the range denoting the entire key space.
func All(x Ordered) Range {
	return Range{X: x, Y: x}
}

// IsAll reports whether r denotes the whole set, i.e. X == Y.
func (r Range) IsAll() bool {
	return keyEqual(r.X, r.Y)
}

// Contains reports whether r contains key t, per the three cases above.
func (r Range) Contains(t Ordered) bool {
	switch {
	case r.IsAll():
		return true
	case keyLess(r.X, r.Y):
		return !keyLess(t, r.X) && keyLess(t, r.Y)
	default:
		return !keyLess(t, r.X) || keyLess(t, r.Y)
	}
}

// String renders the range for logging/debugging.
func (r Range) String() string {
	if r.IsAll() {
		return "(all)"
	}
	return "[" + stringOf(r.X) + ", " + stringOf(r.Y) + ")"
}

func stringOf(k Ordered) string {
	if s, ok := k.(interface{ String() string }); ok {
		return s.String()
	}
	if k == nil {
		return "<nil>"
	}
	return "?"
}
