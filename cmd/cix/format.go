package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"gopkg.in/yaml.v3"

	cixerrors "cix/internal/errors"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// envelope is the structured response wrapper every command emits
type envelope struct {
	Success bool        `json:"success" yaml:"success"`
	Data    interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty" yaml:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// humanizer is implemented by response types that know how to render
// themselves for terminals. Everything else falls back to JSON.
type humanizer interface {
	human() string
}

// emit prints a successful response in the selected format
func emit(data interface{}) error {
	switch OutputFormat(formatFlag) {
	case FormatJSON:
		return printJSON(envelope{Success: true, Data: data})
	case FormatYAML:
		return printYAML(envelope{Success: true, Data: data})
	case FormatHuman:
		if h, ok := data.(humanizer); ok {
			fmt.Println(h.human())
			return nil
		}
		return printJSON(envelope{Success: true, Data: data})
	default:
		return fmt.Errorf("unsupported format: %s", formatFlag)
	}
}

// emitFailure prints a structured failure in the selected format, then
// returns the error for the exit code.
func emitFailure(err error) error {
	body := &errorBody{Code: string(cixerrors.InternalError), Message: err.Error()}
	var ce *cixerrors.CixError
	if stderrors.As(err, &ce) {
		body.Code = string(ce.Code)
		body.Message = ce.Message
	}

	switch OutputFormat(formatFlag) {
	case FormatJSON:
		_ = printJSON(envelope{Success: false, Error: body})
	case FormatYAML:
		_ = printYAML(envelope{Success: false, Error: body})
	default:
		fmt.Printf("error: %s\n", err.Error())
	}
	return err
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
