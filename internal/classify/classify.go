// Package classify is the optional model-assisted change classifier
// boundary. When no classifier is configured or it fails, callers fall back
// to heuristic risk rules; unavailability is a normal condition here, never
// an error surfaced to the user.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"cix/internal/logging"
)

// ErrUnavailable signals that no classification could be produced and the
// caller should use the heuristic path.
var ErrUnavailable = stderrors.New("classifier unavailable")

// Change is one semantic change the classifier identified in a diff
type Change struct {
	ChangeType       string `json:"changeType"` // "refactor", "bugfix", "feature", ...
	FilePath         string `json:"filePath"`
	SymbolName       string `json:"symbolName,omitempty"`
	Description      string `json:"description"`
	Breaking         bool   `json:"breaking"`
	SecurityRelevant bool   `json:"securityRelevant"`
}

// Classification is the structured outcome of classifying one diff
type Classification struct {
	Changes   []Change `json:"changes"`
	Summary   string   `json:"summary"`
	RiskFlags []string `json:"riskFlags"`
}

// Classifier labels a diff with semantic change information
type Classifier interface {
	ClassifyChange(ctx context.Context, diffText string) (*Classification, error)
}

// CommandClassifier shells out to a configured command, feeding the diff on
// stdin and reading a JSON classification from stdout. Any failure — missing
// command, non-zero exit, timeout, unparseable output — maps to
// ErrUnavailable.
type CommandClassifier struct {
	command string
	args    []string
	timeout time.Duration
	logger  *logging.Logger
}

// NewCommandClassifier creates a classifier around an external command.
// Returns nil when no command is configured; a nil classifier means
// heuristic-only operation.
func NewCommandClassifier(command string, args []string, timeoutMs int, logger *logging.Logger) *CommandClassifier {
	if command == "" {
		return nil
	}
	timeout := 30 * time.Second
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &CommandClassifier{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger.WithComponent("classify"),
	}
}

// ClassifyChange runs the command on the diff text
func (c *CommandClassifier) ClassifyChange(ctx context.Context, diffText string) (*Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(diffText)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		c.logger.Warn("Classifier command failed, falling back to heuristics", map[string]interface{}{
			"command": c.command,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	result, err := ParseResponse(stdout.String())
	if err != nil {
		c.logger.Warn("Classifier output unparseable, falling back to heuristics", map[string]interface{}{
			"command": c.command,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, nil
}

// ParseResponse extracts a Classification from classifier output. Model
// output often wraps the JSON in prose, so the outermost brace pair is
// tried first; if no valid JSON is found, the first non-empty line is kept
// as a summary with no structured changes.
func ParseResponse(content string) (*Classification, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')

	if start >= 0 && end > start {
		var result Classification
		if err := json.Unmarshal([]byte(content[start:end+1]), &result); err == nil {
			return &result, nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "{") {
			return &Classification{Summary: line}, nil
		}
	}

	return nil, stderrors.New("no usable content in classifier output")
}
