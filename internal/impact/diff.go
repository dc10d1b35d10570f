package impact

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// ParseDiff parses a unified diff into per-file changed line sets
func ParseDiff(diffContent string) (*ParsedDiff, error) {
	if strings.TrimSpace(diffContent) == "" {
		return &ParsedDiff{}, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	result := &ParsedDiff{Files: make([]ChangedFile, 0, len(fileDiffs))}
	for _, fd := range fileDiffs {
		result.Files = append(result.Files, convertFileDiff(fd))
	}
	return result, nil
}

func convertFileDiff(fd *godiff.FileDiff) ChangedFile {
	cf := ChangedFile{
		OldPath: cleanPath(fd.OrigName),
		NewPath: cleanPath(fd.NewName),
		Hunks:   make([]ChangedHunk, 0, len(fd.Hunks)),
	}

	if fd.OrigName == "/dev/null" || fd.OrigName == "" {
		cf.IsNew = true
		cf.OldPath = ""
	}
	if fd.NewName == "/dev/null" || fd.NewName == "" {
		cf.Deleted = true
		cf.NewPath = ""
	}
	if cf.OldPath != "" && cf.NewPath != "" && cf.OldPath != cf.NewPath {
		cf.Renamed = true
	}

	for _, hunk := range fd.Hunks {
		cf.Hunks = append(cf.Hunks, convertHunk(hunk))
	}
	return cf
}

// convertHunk walks the hunk body tracking both line counters
func convertHunk(hunk *godiff.Hunk) ChangedHunk {
	ch := ChangedHunk{
		OldStart: int(hunk.OrigStartLine),
		OldLines: int(hunk.OrigLines),
		NewStart: int(hunk.NewStartLine),
		NewLines: int(hunk.NewLines),
	}

	oldLine := int(hunk.OrigStartLine)
	newLine := int(hunk.NewStartLine)

	for _, line := range strings.Split(string(hunk.Body), "\n") {
		if len(line) == 0 {
			oldLine++
			newLine++
			continue
		}
		switch line[0] {
		case '+':
			ch.Added = append(ch.Added, newLine)
			newLine++
		case '-':
			ch.Removed = append(ch.Removed, oldLine)
			oldLine++
		case ' ':
			oldLine++
			newLine++
		case '\\':
			// "\ No newline at end of file"
		}
	}
	return ch
}

// addedLineText extracts the text of added lines for pattern scanning
func addedLineText(diffContent string) []string {
	var lines []string
	for _, line := range strings.Split(diffContent, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			lines = append(lines, line[1:])
		}
	}
	return lines
}

// cleanPath strips the a/ b/ prefixes git puts on diff paths
func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return path
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}
