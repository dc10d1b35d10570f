package impact

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"cix/internal/logging"
)

// HistoryPattern is one learned fix pattern: code shapes that needed bug
// fixes before raise the risk of changes reintroducing them.
type HistoryPattern struct {
	Name        string   `toml:"name"`
	Substrings  []string `toml:"substrings"`
	Description string   `toml:"description"`
}

type historyFile struct {
	Patterns []HistoryPattern `toml:"patterns"`
}

// LoadHistoryPatterns reads .cix/risk_patterns.toml under repoRoot. A
// missing file is normal (no history yet) and yields no patterns.
func LoadHistoryPatterns(repoRoot string, logger *logging.Logger) []HistoryPattern {
	path := filepath.Join(repoRoot, ".cix", "risk_patterns.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var f historyFile
	if err := toml.Unmarshal(data, &f); err != nil {
		logger.Warn("Ignoring malformed risk patterns file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil
	}
	return f.Patterns
}

// matchesAny reports whether any added line contains one of the pattern's
// substrings
func (p HistoryPattern) matchesAny(addedLines []string) bool {
	if len(p.Substrings) == 0 {
		return false
	}
	for _, line := range addedLines {
		for _, sub := range p.Substrings {
			if sub != "" && strings.Contains(line, sub) {
				return true
			}
		}
	}
	return false
}
