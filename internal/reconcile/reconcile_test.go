package reconcile

import (
	"testing"

	"github.com/machine2learn/qgs/internal/variant"
)

type fakeWindow struct {
	dropped [][3]interface{}
}

func (w *fakeWindow) DropShallow(chr, pos int, ref string) {
	w.dropped = append(w.dropped, [3]interface{}{chr, pos, ref})
}

func TestAgreeingOrientation(t *testing.T) {
	sample := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G"}
	reference := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G"}
	win := &fakeWindow{}
	if !Reconcile(sample, reference, win) {
		t.Fatal("expected matching orientation to succeed")
	}
	if sample.Flip {
		t.Error("should not flip when orientations already agree")
	}
	if len(win.dropped) != 0 {
		t.Error("should not drop any window entry when no flip occurs")
	}
}

func TestFlipDetected(t *testing.T) {
	sample := &variant.Locus{Chr: 1, Pos: 100, Ref: "G", Alt: "A"}
	reference := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G"}
	win := &fakeWindow{}
	if !Reconcile(sample, reference, win) {
		t.Fatal("expected flip case to succeed")
	}
	if !sample.Flip {
		t.Error("expected sample to be marked flipped")
	}
	if sample.Ref != "A" || sample.AltList[0] != "G" {
		t.Errorf("expected ref/alt swapped, got ref=%s alt=%v", sample.Ref, sample.AltList)
	}
	if len(win.dropped) != 1 || win.dropped[0] != [3]interface{}{1, 100, "G"} {
		t.Errorf("expected stale window entry dropped under pre-flip ref, got %v", win.dropped)
	}
}

func TestMismatchRejected(t *testing.T) {
	sample := &variant.Locus{Chr: 1, Pos: 100, Ref: "C", Alt: "T"}
	reference := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G"}
	win := &fakeWindow{}
	if Reconcile(sample, reference, win) {
		t.Fatal("expected unrelated alleles to be rejected")
	}
}

func TestEmptyAltRejected(t *testing.T) {
	sample := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: ""}
	reference := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G"}
	win := &fakeWindow{}
	if Reconcile(sample, reference, win) {
		t.Fatal("expected empty alt-list to be rejected")
	}
}

func TestMultiAllelicReferenceUsesFirstAlt(t *testing.T) {
	sample := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G"}
	reference := &variant.Locus{Chr: 1, Pos: 100, Ref: "A", Alt: "G,T"}
	win := &fakeWindow{}
	if !Reconcile(sample, reference, win) {
		t.Fatal("expected agreement against reference's first alt allele")
	}
}
