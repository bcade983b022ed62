package console

import (
	"bytes"
	"testing"
)

func TestRingPutGet(t *testing.T) {
	t.Parallel()

	r := NewRing(8)

	if n := r.Put([]byte("abcde")); n != 5 {
		t.Errorf("put: want 5, got %d", n)
	}

	if n := r.Len(); n != 5 {
		t.Errorf("len: want 5, got %d", n)
	}

	if got := r.Get(3); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("get: want abc, got %q", got)
	}

	// Wrap around the backing array.
	if n := r.Put([]byte("fghij")); n != 5 {
		t.Errorf("put: want 5, got %d", n)
	}

	if got := r.Get(7); !bytes.Equal(got, []byte("defghij")) {
		t.Errorf("get: want defghij, got %q", got)
	}
}

func TestRingBounded(t *testing.T) {
	t.Parallel()

	r := NewRing(4)

	if n := r.Put([]byte("abcdef")); n != 4 {
		t.Errorf("put past capacity: want 4, got %d", n)
	}

	if n := r.PutByte('x'); n != 0 {
		t.Errorf("put into full buffer: want 0, got %d", n)
	}

	if r.Len() != r.Cap() {
		t.Errorf("len %d exceeds cap %d", r.Len(), r.Cap())
	}
}

func TestRingTailOps(t *testing.T) {
	t.Parallel()

	r := NewRing(8)
	r.Put([]byte("ab\n"))

	if b, ok := r.PeekTail(); !ok || b != '\n' {
		t.Errorf("peek tail: want newline, got %q ok=%v", b, ok)
	}

	if b, ok := r.PopTail(); !ok || b != '\n' {
		t.Errorf("pop tail: want newline, got %q ok=%v", b, ok)
	}

	if r.Len() != 2 {
		t.Errorf("len after pop: want 2, got %d", r.Len())
	}

	empty := NewRing(4)
	if _, ok := empty.PopTail(); ok {
		t.Error("pop tail of empty buffer succeeded")
	}
}

func TestRingFind(t *testing.T) {
	t.Parallel()

	r := NewRing(8)
	r.Put([]byte("hi\nbye"))

	if i := r.Find('\n'); i != 2 {
		t.Errorf("find newline: want 2, got %d", i)
	}

	if i := r.Find('z'); i != -1 {
		t.Errorf("find missing byte: want -1, got %d", i)
	}

	// Find measures from the head even after the buffer wraps.
	r.Get(4)
	r.Put([]byte("ok\n"))

	if i := r.Find('\n'); i != 4 {
		t.Errorf("find after wrap: want 4, got %d", i)
	}
}
