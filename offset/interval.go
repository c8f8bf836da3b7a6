package offset

// Interval is a byte range [From, To). An Unknown To denotes an
// open-ended range (e.g. strlen's "used [0, ∞)"); an Unknown From
// never occurs in practice but is handled the same way for symmetry.
type Interval struct {
	From, To Offset
}

// NewInterval builds the interval [from, to).
func NewInterval(from, to Offset) Interval {
	return Interval{From: from, To: to}
}

// Unbounded builds the interval [from, ∞).
func Unbounded(from Offset) Interval {
	return Interval{From: from, To: Unknown}
}

// Empty reports whether the interval spans zero concrete bytes.
// An Unknown-bounded interval is never considered empty: an unknown
// length is a conservative "maybe nonempty", not a guaranteed no-op.
func (iv Interval) Empty() bool {
	if iv.From.IsUnknown() || iv.To.IsUnknown() {
		return false
	}
	fv, _ := iv.From.Value()
	tv, _ := iv.To.Value()
	return fv >= tv
}

// Overlaps reports whether iv and other denote ranges that may share a
// byte. Unknown is treated as overlapping with everything: a concrete
// range vs. an unknown-offset range is always an overlap, since we
// cannot rule it out.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.From.IsUnknown() || iv.To.IsUnknown() || other.From.IsUnknown() || other.To.IsUnknown() {
		return true
	}
	af, _ := iv.From.Value()
	at, _ := iv.To.Value()
	bf, _ := other.From.Value()
	bt, _ := other.To.Value()
	return af < bt && bf < at
}

// Contains reports whether off lies within iv.
func (iv Interval) Contains(off Offset) bool {
	return iv.Overlaps(Interval{From: off, To: off.Add(New(1))})
}

func (iv Interval) String() string {
	return "[" + iv.From.String() + ", " + iv.To.String() + ")"
}
