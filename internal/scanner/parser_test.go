package scanner

import (
	"testing"
)

func TestParseReport(t *testing.T) {
	output := `Scanning lockfile for vulnerabilities...
Resolved 142 packages
UPGRADED-PACKAGE: lodash,4.17.20,4.17.21
UPGRADED-PACKAGE: @babel/core,7.12.0,7.23.5
some unrelated progress line
UPGRADED-PACKAGE: minimist,1.2.5,1.2.8
REMAINING-VULNS: 4
UNFIXABLE-VULNS: 2
done
`
	report := ParseReport(output)

	want := []Upgrade{
		{Name: "lodash", From: "4.17.20", To: "4.17.21"},
		{Name: "@babel/core", From: "7.12.0", To: "7.23.5"},
		{Name: "minimist", From: "1.2.5", To: "1.2.8"},
	}
	if len(report.Candidates) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(report.Candidates), len(want))
	}
	for i, u := range want {
		if report.Candidates[i] != u {
			t.Errorf("candidate %d = %+v, want %+v", i, report.Candidates[i], u)
		}
	}

	if !report.Remaining.Known || report.Remaining.Value != 4 {
		t.Errorf("Remaining = %+v, want known 4", report.Remaining)
	}
	if !report.Unfixable.Known || report.Unfixable.Value != 2 {
		t.Errorf("Unfixable = %+v, want known 2", report.Unfixable)
	}
}

// The fixer may omit the count markers; absent must stay distinct from
// zero.
func TestParseReport_MissingCounts(t *testing.T) {
	report := ParseReport("UPGRADED-PACKAGE: lodash,4.17.20,4.17.21\n")

	if report.Remaining.Known {
		t.Errorf("Remaining = %+v, want unknown", report.Remaining)
	}
	if report.Unfixable.Known {
		t.Errorf("Unfixable = %+v, want unknown", report.Unfixable)
	}
	if len(report.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(report.Candidates))
	}
}

func TestParseReport_NoMarkers(t *testing.T) {
	report := ParseReport("error: failed to resolve dependency graph\n")

	if len(report.Candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(report.Candidates))
	}
	if report.Remaining.Known || report.Unfixable.Known {
		t.Error("counts must be unknown when markers are absent")
	}
}

// Markers survive on a failed invocation's combined output: whatever
// was printed before the failure still parses.
func TestParseReport_PartialOutputFromFailedRun(t *testing.T) {
	output := `UPGRADED-PACKAGE: lodash,4.17.20,4.17.21
REMAINING-VULNS: 7
panic: network timeout querying vulnerability database
`
	report := ParseReport(output)
	if len(report.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(report.Candidates))
	}
	if !report.Remaining.Known || report.Remaining.Value != 7 {
		t.Errorf("Remaining = %+v, want known 7", report.Remaining)
	}
}

func TestUpgradeBump(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     string
	}{
		{"patch", "4.17.20", "4.17.21", "patch"},
		{"minor", "7.12.0", "7.23.5", "minor"},
		{"major", "1.2.8", "2.0.0", "major"},
		{"v-prefixed input", "v1.0.0", "v1.1.0", "minor"},
		{"prerelease", "1.0.0", "2.0.0-rc.1", "major"},
		{"unparsable from", "latest", "2.0.0", "unknown"},
		{"unparsable to", "1.0.0", "next", "unknown"},
		{"empty", "", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Upgrade{Name: "pkg", From: tt.from, To: tt.to}
			if got := u.Bump(); got != tt.want {
				t.Errorf("Bump() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFixReportNames(t *testing.T) {
	r := &FixReport{Candidates: []Upgrade{
		{Name: "b", From: "1", To: "2"},
		{Name: "a", From: "1", To: "2"},
	}}
	names := r.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("Names() = %v, want [b a] (ranking order preserved)", names)
	}
}
