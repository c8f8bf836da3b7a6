package queue

import "testing"

func TestFIFOOrder(t *testing.T) {
	q := NewFIFO()
	q.Push(1)
	q.Push(2)
	q.Push(3)
	var got []int
	for !q.Empty() {
		got = append(got, q.Pop())
	}
	want := []int{1, 2, 3}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("FIFO order = %v, want %v", got, want)
		}
	}
}

func TestLIFOOrder(t *testing.T) {
	q := NewLIFO()
	q.Push(1)
	q.Push(2)
	q.Push(3)
	var got []int
	for !q.Empty() {
		got = append(got, q.Pop())
	}
	want := []int{3, 2, 1}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("LIFO order = %v, want %v", got, want)
		}
	}
}

func TestDedupSuppressesDuplicatePending(t *testing.T) {
	d := NewDedup(NewFIFO())
	d.Push(1)
	d.Push(1)
	d.Push(2)
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate push should be suppressed)", d.Len())
	}
	d.Pop() // pops 1
	d.Push(1)
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (re-push after pop should succeed)", d.Len())
	}
}
