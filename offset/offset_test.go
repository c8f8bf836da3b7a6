package offset

import "testing"

func TestUnknownAbsorbing(t *testing.T) {
	five := New(5)

	if got := Unknown.Add(five); !got.IsUnknown() {
		t.Errorf("Unknown.Add(5) = %v, want unknown", got)
	}
	if got := five.Add(Unknown); !got.IsUnknown() {
		t.Errorf("5.Add(Unknown) = %v, want unknown", got)
	}
	if got := Unknown.Sub(five); !got.IsUnknown() {
		t.Errorf("Unknown.Sub(5) = %v, want unknown", got)
	}
	if got := Unknown.Mul(five); !got.IsUnknown() {
		t.Errorf("Unknown.Mul(5) = %v, want unknown", got)
	}
	if got := Max(Unknown, five); !got.IsUnknown() {
		t.Errorf("Max(Unknown, 5) = %v, want unknown", got)
	}
	if got := Min(Unknown, five); !got.IsUnknown() {
		t.Errorf("Min(Unknown, 5) = %v, want unknown", got)
	}
}

func TestOverflowSaturates(t *testing.T) {
	max := New(^uint64(0))
	if got := max.Add(New(1)); !got.IsUnknown() {
		t.Errorf("max+1 = %v, want unknown (overflow)", got)
	}
	if got := New(0).Sub(New(1)); !got.IsUnknown() {
		t.Errorf("0-1 = %v, want unknown (underflow)", got)
	}
	big := New(1 << 40)
	if got := big.Mul(big); !got.IsUnknown() {
		t.Errorf("2^40 * 2^40 = %v, want unknown (overflow)", got)
	}
}

func TestEquality(t *testing.T) {
	if !Unknown.Equal(Unknown) {
		t.Error("Unknown should equal itself")
	}
	if Unknown.Equal(New(0)) {
		t.Error("Unknown should not equal a concrete offset")
	}
	if !New(3).Equal(New(3)) {
		t.Error("3 should equal 3")
	}
}

func TestIntervalOverlap(t *testing.T) {
	a := NewInterval(New(0), New(8))
	b := NewInterval(New(4), New(12))
	c := NewInterval(New(8), New(16))
	if !a.Overlaps(b) {
		t.Error("[0,8) and [4,12) should overlap")
	}
	if a.Overlaps(c) {
		t.Error("[0,8) and [8,16) should not overlap")
	}
	unk := Unbounded(New(0))
	if !c.Overlaps(unk) {
		t.Error("unknown-bounded interval should overlap everything")
	}
}

func TestIntervalEmpty(t *testing.T) {
	if !NewInterval(New(4), New(4)).Empty() {
		t.Error("[4,4) should be empty")
	}
	if NewInterval(New(0), Unknown).Empty() {
		t.Error("[0,?) should not be considered empty")
	}
}
