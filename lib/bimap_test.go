package lib

import (
	"testing"
)

func TestBiMap(t *testing.T) {
	var bm BiMap[int, string]

	bm.Set(12, "12")

	if b, _ := bm.GetB(12); b != "12" {
		t.Fatal("incorrect B")
	}

	if a, _ := bm.GetA("12"); a != 12 {
		t.Fatal("incorrect A")
	}

	// replaces both sides of the stale pair
	bm.Set(12, "twelve")
	if _, found := bm.GetA("12"); found {
		t.Fatal("found stale A")
	}
	if a, _ := bm.GetA("twelve"); a != 12 {
		t.Fatal("incorrect A")
	}
	bm.Set(13, "twelve")
	if _, found := bm.GetB(12); found {
		t.Fatal("found stale B")
	}
	if len(bm.a) != 1 || len(bm.b) != 1 {
		t.Fatal("incorrect length")
	}
}

func TestNewBiMap(t *testing.T) {
	bm := NewBiMap(map[string]byte{"a": 1, "b": 2})
	if len(bm.a) != 2 || len(bm.b) != 2 {
		t.Fatal("incorrect length")
	}
	if a, found := bm.GetA(2); found == false || a != "b" {
		t.Fatal("incorrect A")
	}
}
