package lib

// BiMap keeps a one-to-one relation between two sets of values.
// It is not safe for concurrent writes; fill it up once and read it afterwards.
type BiMap[A comparable, B comparable] struct {
	a map[A]B
	b map[B]A
}

// NewBiMap creates BiMap out of the given pairs.
func NewBiMap[A comparable, B comparable](pairs map[A]B) *BiMap[A, B] {
	bm := &BiMap[A, B]{
		a: make(map[A]B, len(pairs)),
		b: make(map[B]A, len(pairs)),
	}
	for a, b := range pairs {
		bm.Set(a, b)
	}
	return bm
}

func (bm *BiMap[A, B]) GetB(a A) (B, bool) {
	val, ok := bm.a[a]
	return val, ok
}

func (bm *BiMap[A, B]) GetA(b B) (A, bool) {
	val, ok := bm.b[b]
	return val, ok
}

// Set adds the pair. Any previous pair holding a or b is removed.
func (bm *BiMap[A, B]) Set(a A, b B) {
	if bm.a == nil {
		bm.a = make(map[A]B)
		bm.b = make(map[B]A)
	}
	if old, found := bm.a[a]; found {
		delete(bm.b, old)
	}
	if old, found := bm.b[b]; found {
		delete(bm.a, old)
	}
	bm.a[a] = b
	bm.b[b] = a
}
