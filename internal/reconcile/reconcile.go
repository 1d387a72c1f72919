// Package reconcile implements allele reconciliation (C3): aligning a
// sample locus against a reference locus at the same (chr, pos),
// possibly flipping the sample's orientation. Grounded on
// original_source/src/qgs.cc's inline reconciliation block.
package reconcile

import "github.com/machine2learn/qgs/internal/variant"

// WindowEntry is the minimal surface reconcile needs from the score
// window: removing a shallow entry recorded under the sample's
// pre-flip ref allele once the canonical orientation is known.
type WindowEntry interface {
	DropShallow(chr, pos int, ref string)
}

// Reconcile compares sample and reference at the same (chr, pos).
// It returns false when the pair must be rejected (ambiguous or
// mismatched alleles); Reconcile does not clear the loci itself, the
// caller calls Clear() on both in that case. On a successful flip it mutates sample in
// place and removes the stale shallow window entry for the old ref.
func Reconcile(sample, reference *variant.Locus, win WindowEntry) bool {
	sample.ParseAlt()
	reference.ParseAlt()
	if len(sample.AltList) == 0 || len(reference.AltList) == 0 {
		return false
	}

	switch {
	case sample.Ref != reference.Ref &&
		sample.Ref == reference.AltList[0] &&
		sample.AltList[0] == reference.Ref:
		win.DropShallow(sample.Chr, sample.Pos, sample.Ref)
		sample.SwitchAltRef()
		return true

	case sample.Ref != reference.Ref || sample.AltList[0] != reference.AltList[0]:
		return false

	default:
		return true
	}
}
