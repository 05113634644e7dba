package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch/autopatch/internal/remediation"
	"github.com/autopatch/autopatch/internal/scanner"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "history", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRoundTrip(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	records := []remediation.RoundRecord{
		{
			RunID:      "run-1",
			Strategy:   "in-place",
			Round:      1,
			Budget:     0,
			Candidates: remediation.CandidateSet{"lodash", "minimist"},
			Blocklist:  []string{},
			Verdict:    remediation.VerdictFail,
			Remaining:  scanner.KnownCount(4),
			Unfixable:  scanner.KnownCount(2),
		},
		{
			RunID:      "run-1",
			Strategy:   "in-place",
			Round:      2,
			Budget:     1,
			Candidates: remediation.CandidateSet{"lodash"},
			Blocklist:  []string{},
			Verdict:    remediation.VerdictPass,
			Remaining:  scanner.KnownCount(3),
		},
		{
			RunID:      "run-1",
			Strategy:   "in-place",
			Round:      3,
			Budget:     2,
			Candidates: remediation.CandidateSet{"lodash"},
			Blocklist:  []string{"minimist"},
			Verdict:    remediation.VerdictFixedPoint,
			// Counts deliberately unknown: absent markers stay NULL.
		},
	}
	for _, rec := range records {
		require.NoError(t, l.RecordRound(ctx, rec))
	}

	got, err := l.Rounds(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, records[0].Candidates, got[0].Candidates)
	assert.Equal(t, remediation.VerdictFail, got[0].Verdict)
	assert.Equal(t, scanner.KnownCount(4), got[0].Remaining)
	assert.Equal(t, scanner.KnownCount(2), got[0].Unfixable)

	assert.Equal(t, 1, got[1].Budget)
	assert.Equal(t, remediation.VerdictPass, got[1].Verdict)
	assert.False(t, got[1].Unfixable.Known)

	assert.Equal(t, []string{"minimist"}, got[2].Blocklist)
	assert.False(t, got[2].Remaining.Known)
	assert.False(t, got[2].Unfixable.Known)
}

func TestLedgerRoundsIsolatedByRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	rec := remediation.RoundRecord{
		RunID: "run-a", Strategy: "relock", Round: 1,
		Candidates: remediation.CandidateSet{}, Blocklist: []string{},
		Verdict: remediation.VerdictFixedPoint,
	}
	require.NoError(t, l.RecordRound(ctx, rec))

	got, err := l.Rounds(ctx, "run-b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLedgerRoundCounts(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	add := func(strategy string, round int) {
		require.NoError(t, l.RecordRound(ctx, remediation.RoundRecord{
			RunID: "run-1", Strategy: strategy, Round: round,
			Candidates: remediation.CandidateSet{}, Blocklist: []string{},
			Verdict: remediation.VerdictPass,
		}))
	}
	add("in-place", 1)
	add("in-place", 2)
	add("in-place", 3)
	add("relock", 1)

	counts, err := l.RoundCounts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"in-place": 3, "relock": 1}, counts)
}
