package playlake_test

import (
	"testing"

	"github.com/playlake/playlake"
)

func TestNexter(t *testing.T) {
	n := playlake.NewNexter(playlake.NexterStartFrom(19))
	if num := n.Next(); num != 19 {
		t.Fatalf("expected 19 for Next, but %d", num)
	}
	if num := n.Last(); num != 19 {
		t.Fatalf("expected 19 for Last, but %d", num)
	}
	if num := n.Next(); num != 20 {
		t.Fatalf("expected 20 for Next, but %d", num)
	}
}
