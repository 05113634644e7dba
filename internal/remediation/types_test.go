package remediation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autopatch/autopatch/internal/scanner"
)

func TestCandidateSetEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b CandidateSet
		want bool
	}{
		{"both empty", nil, CandidateSet{}, true},
		{"identical", CandidateSet{"a", "b"}, CandidateSet{"a", "b"}, true},
		{"different order", CandidateSet{"a", "b"}, CandidateSet{"b", "a"}, false},
		{"prefix is not equal", CandidateSet{"a"}, CandidateSet{"a", "b"}, false},
		{"disjoint", CandidateSet{"a"}, CandidateSet{"c"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestBlocklistDeduplicatesAndPreservesOrder(t *testing.T) {
	b := NewBlocklist()
	b.Add("pkgB")
	b.Add("pkgA")
	b.Add("pkgB")

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"pkgB", "pkgA"}, b.Entries())

	// Entries returns a copy; mutating it must not touch the blocklist.
	entries := b.Entries()
	entries[0] = "mutated"
	assert.Equal(t, []string{"pkgB", "pkgA"}, b.Entries())
}

func TestBestResultConsider(t *testing.T) {
	outcome := func(name string, applied CandidateSet, remaining scanner.Count) *Outcome {
		return &Outcome{Strategy: Strategy{Name: name}, Applied: applied, Remaining: remaining}
	}

	var best BestResult

	assert.False(t, best.Consider(outcome("empty", nil, scanner.KnownCount(1))),
		"empty applied must not win")
	assert.False(t, best.Consider(outcome("uncounted", CandidateSet{"a"}, scanner.Count{})),
		"unknown remaining must not win")

	assert.True(t, best.Consider(outcome("first", CandidateSet{"a"}, scanner.KnownCount(5))))
	assert.Equal(t, "first", best.Outcome.Strategy.Name)

	assert.False(t, best.Consider(outcome("tie", CandidateSet{"b"}, scanner.KnownCount(5))),
		"strict less-than only")
	assert.Equal(t, "first", best.Outcome.Strategy.Name)

	assert.True(t, best.Consider(outcome("better", CandidateSet{"c"}, scanner.KnownCount(3))))
	assert.Equal(t, "better", best.Outcome.Strategy.Name)
}
