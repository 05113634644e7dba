package scanner

import (
	"regexp"
	"strconv"

	"golang.org/x/mod/semver"
)

// Marker patterns emitted by the fixer on its combined output stream.
// The markers appear whether or not the invocation itself exits zero,
// so parsing always runs over whatever output was captured.
var (
	upgradedPattern  = regexp.MustCompile(`UPGRADED-PACKAGE:\s*(.+?),(.+?),(\S+)`)
	remainingPattern = regexp.MustCompile(`REMAINING-VULNS:\s*(\d+)`)
	unfixablePattern = regexp.MustCompile(`UNFIXABLE-VULNS:\s*(\d+)`)
)

// ParseReport scrapes the fixer's markers out of its combined output.
// Unrecognized lines are ignored; absent count markers leave the
// corresponding Count unknown.
func ParseReport(output string) *FixReport {
	report := &FixReport{RawOutput: output}

	for _, match := range upgradedPattern.FindAllStringSubmatch(output, -1) {
		report.Candidates = append(report.Candidates, Upgrade{
			Name: match[1],
			From: match[2],
			To:   match[3],
		})
	}

	if match := remainingPattern.FindStringSubmatch(output); match != nil {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			report.Remaining = KnownCount(n)
		}
	}

	if match := unfixablePattern.FindStringSubmatch(output); match != nil {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			report.Unfixable = KnownCount(n)
		}
	}

	return report
}

// Bump classifies the upgrade's version jump as "major", "minor", or
// "patch". Returns "unknown" when either version does not parse as
// semver. Used for reporting only; the controller never branches on it.
func (u Upgrade) Bump() string {
	from, to := canonicalVersion(u.From), canonicalVersion(u.To)
	if from == "" || to == "" {
		return "unknown"
	}
	switch {
	case semver.Major(from) != semver.Major(to):
		return "major"
	case semver.MajorMinor(from) != semver.MajorMinor(to):
		return "minor"
	default:
		return "patch"
	}
}

// canonicalVersion normalizes a fixer-reported version to the v-prefixed
// form x/mod/semver expects. Returns "" for versions that still do not
// validate.
func canonicalVersion(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
