package impact

import (
	"math"
	"strings"

	"cix/internal/classify"
)

// Blast radius thresholds for the heuristic flags
const (
	wideBlastRadius   = 50
	mediumBlastRadius = 10
)

// securityPatterns are substrings of added lines that mark a change as
// security-sensitive for the heuristic path.
var securityPatterns = []string{
	"password", "passwd", "secret", "api_key", "apikey", "token",
	"credential", "auth", "crypt", "unsafe", "eval(", "exec(",
	"system(", "subprocess", "os.command", "sql", "privilege", "sudo",
}

// heuristicFlags derives risk flags without a model: security pattern
// scan of added lines, changed-line ratio against touched symbol size,
// blast radius thresholds, and historical fix patterns.
func heuristicFlags(addedLines []string, touched []TouchedSymbol, impactSize int, history []HistoryPattern) []string {
	var flags []string

	if scanSecurityPatterns(addedLines) {
		flags = append(flags, "security-sensitive-pattern")
	}

	// Symbols mostly rewritten are riskier than symbols lightly touched
	spanTotal, changedTotal := 0, 0
	for _, sym := range touched {
		spanTotal += sym.SpanLines
		changedTotal += sym.ChangedLines
	}
	if spanTotal > 0 && float64(changedTotal)/float64(spanTotal) > 0.5 {
		flags = append(flags, "large-rewrite-ratio")
	}

	if impactSize >= wideBlastRadius {
		flags = append(flags, "wide-blast-radius")
	} else if impactSize >= mediumBlastRadius {
		flags = append(flags, "medium-blast-radius")
	}

	for _, p := range history {
		if p.matchesAny(addedLines) {
			flags = append(flags, "historical-fix: "+p.Name)
		}
	}

	return flags
}

func scanSecurityPatterns(addedLines []string) bool {
	for _, line := range addedLines {
		lower := strings.ToLower(line)
		for _, pattern := range securityPatterns {
			if strings.Contains(lower, pattern) {
				return true
			}
		}
	}
	return false
}

// riskLevel folds flags and classified changes into the risk ladder.
// Security outranks breaking: security+breaking is Critical, security
// alone High, breaking High, minor flags Medium, otherwise Low.
func riskLevel(flags []string, changes []classify.Change) string {
	hasBreaking := false
	hasSecurity := false
	for _, c := range changes {
		if c.Breaking {
			hasBreaking = true
		}
		if c.SecurityRelevant {
			hasSecurity = true
		}
	}

	breakingFlags := 0
	securityFlags := 0
	for _, f := range flags {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "breaking") {
			breakingFlags++
		}
		if strings.Contains(lower, "security") {
			securityFlags++
		}
	}

	if hasSecurity || securityFlags > 0 {
		if hasBreaking || breakingFlags > 0 {
			return RiskCritical
		}
		return RiskHigh
	}
	if hasBreaking || breakingFlags > 1 {
		return RiskHigh
	}
	if breakingFlags > 0 || len(flags) > 3 {
		return RiskMedium
	}
	return RiskLow
}

// impactScore grows logarithmically with caller count, with a bonus for
// indirect (depth > 1) reach, capped at 1.0.
func impactScore(impactSet []ImpactEntry) float64 {
	if len(impactSet) == 0 {
		return 0.0
	}

	base := math.Log(float64(len(impactSet))) / 10.0
	bonus := 0.0
	for _, e := range impactSet {
		if e.Depth > 1 {
			bonus = 0.2
			break
		}
	}
	return math.Min(base+bonus, 1.0)
}
