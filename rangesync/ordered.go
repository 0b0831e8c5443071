package rangesync

// Ordered is a totally ordered, comparable key. Compare returns a negative
// number if the receiver sorts before other, zero if they are equal, and a
// positive number if the receiver sorts after other.
//
// A nil Ordered is used as the zero/default key, the way an empty store's
// "first key" is reported as the key type's default value in spec terms.
type Ordered interface {
	Compare(other Ordered) int
}

// keyEqual reports whether two keys denote the same logical key, treating
// nil (the default key of an empty store) as equal only to itself.
func keyEqual(a, b Ordered) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Compare(b) == 0
}

// keyLess reports whether a sorts strictly before b. A nil key never
// compares less than anything and nothing compares less than nil; callers
// that need nil to behave as "smallest possible key" must special-case it.
// An empty store's All(nil) range is still the whole set, because
// keyEqual treats nil as equal to itself.
func keyLess(a, b Ordered) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Compare(b) < 0
}
