package reorder

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"yqhp/eval-fanout/pkg/jsondoc"
)

func genKeys(t *rapid.T, label string) []string {
	return rapid.SliceOfDistinct(
		rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f", "g", "h"}),
		rapid.ID[string],
	).Draw(t, label)
}

// TestOrderVariablesProperty: the output is a permutation of the input
// with every canonical key first, in canonical order.
func TestOrderVariablesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		present := genKeys(t, "present")
		canonical := genKeys(t, "canonical")

		doc := jsondoc.NewObject()
		for i, k := range present {
			doc.Set(k, i)
		}
		out := orderVariables(doc, canonical)

		got := out.Keys()
		if len(got) != len(present) {
			t.Fatalf("length %d, want %d", len(got), len(present))
		}
		for _, k := range present {
			if !out.Has(k) {
				t.Fatalf("key %s dropped", k)
			}
		}

		var want []string
		inDoc := make(map[string]bool)
		for _, k := range present {
			inDoc[k] = true
		}
		inCanon := make(map[string]bool)
		for _, k := range canonical {
			inCanon[k] = true
			if inDoc[k] {
				want = append(want, k)
			}
		}
		for _, k := range present {
			if !inCanon[k] {
				want = append(want, k)
			}
		}
		if fmt.Sprint(want) != fmt.Sprint(got) {
			t.Fatalf("order %v, want %v", got, want)
		}
	})
}

// TestOrderModelsProperty: models follow the canonical order filtered to
// the ones present in the leaf, and reordering twice changes nothing.
func TestOrderModelsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		present := genKeys(t, "present")
		canonical := genKeys(t, "canonical")

		leaf := jsondoc.NewObject()
		for _, k := range present {
			leaf.Set(k, k)
		}
		once := orderModels(leaf, canonical)
		twice := orderModels(once, canonical)

		if !jsondoc.EqualOrdered(once, twice) {
			t.Fatalf("not stable: %v vs %v", once.Keys(), twice.Keys())
		}
		pos := -1
		for _, k := range once.Keys() {
			if !leaf.Has(k) {
				t.Fatalf("model %s fabricated", k)
			}
			i := indexOf(canonical, k)
			if i <= pos {
				t.Fatalf("model %s out of order in %v", k, once.Keys())
			}
			pos = i
		}
	})
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
