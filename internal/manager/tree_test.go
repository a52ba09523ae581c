package manager

import (
	"slices"
	"testing"
)

func TestWalkDepthsAndSkip(t *testing.T) {
	root := tree("r", "", &node{kids: []*node{leaf("a", "")}}, tree("b", "", leaf("b1", "")))
	var got []string
	Walk(root, func(n Node, depth int) bool {
		got = append(got, string(n.ModelID())+":"+string(rune('0'+depth)))
		return n.ModelID() != "b"
	})
	want := []string{"r:0", ":1", "a:2", "b:1"}
	if !slices.Equal(got, want) {
		t.Fatalf("walk order %v, want %v", got, want)
	}
}

func TestWalkCutsRepeatedIDOnPath(t *testing.T) {
	x := tree("x", "")
	x.kids = []*node{tree("y", "", x), leaf("x", "self")}
	var n int
	Walk(x, func(Node, int) bool { n++; return true })
	// x, y; the x below y is on the path; the second child x is too.
	if n != 2 {
		t.Fatalf("visited %d nodes, want 2", n)
	}
}
