package impact

import "cix/internal/classify"

// Risk levels, ordered. Security-relevant changes outrank breaking ones.
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// ParsedDiff is a unified diff broken into per-file hunks
type ParsedDiff struct {
	Files []ChangedFile
}

// ChangedFile is one file's worth of diff hunks
type ChangedFile struct {
	OldPath string
	NewPath string
	IsNew   bool
	Deleted bool
	Renamed bool
	Hunks   []ChangedHunk
}

// ChangedHunk records the changed line numbers of one hunk: Added holds
// new-side line numbers, Removed holds old-side line numbers.
type ChangedHunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Added    []int
	Removed  []int
}

// Path returns the most relevant path for the file
func (cf *ChangedFile) Path() string {
	if cf.Deleted {
		return cf.OldPath
	}
	return cf.NewPath
}

// TouchedSymbol is a symbol whose span overlaps changed lines
type TouchedSymbol struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	FilePath     string `json:"filePath"`
	SpanLines    int    `json:"spanLines"`
	ChangedLines int    `json:"changedLines"`
}

// ImpactEntry is one transitively affected caller
type ImpactEntry struct {
	Name     string `json:"name"`
	FilePath string `json:"filePath"`
	Depth    int    `json:"depth"`
}

// Risk is the assessed risk of a change
type Risk struct {
	Level string   `json:"level"`
	Flags []string `json:"flags"`
	Score float64  `json:"score"`
}

// Result is a complete diff impact analysis. The whole struct is what the
// cache payload serializes.
type Result struct {
	FromRev        string            `json:"fromRev"`
	ToRev          string            `json:"toRev"`
	Method         string            `json:"method"`
	Summary        string            `json:"summary"`
	Risk           Risk              `json:"risk"`
	FilesChanged   int               `json:"filesChanged"`
	LinesAdded     int               `json:"linesAdded"`
	LinesRemoved   int               `json:"linesRemoved"`
	TouchedSymbols []TouchedSymbol   `json:"touchedSymbols"`
	ImpactSet      []ImpactEntry     `json:"impactSet"`
	Changes        []classify.Change `json:"changes,omitempty"`
	Truncated      bool              `json:"truncated"`
	Cached         bool              `json:"cached"`
}
