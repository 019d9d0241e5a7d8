// Package llmjson recovers a single JSON object from model output.
// Parse failures are classified: truncated output is fatal (the caller
// should raise the output token cap and retry), anything else gets one
// model-driven repair attempt.
package llmjson

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	llmclient "snapshotter/internal/llm/client"
)

// TransportError wraps a failure of the initial generation call.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm call failed: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// TruncatedError reports output that is syntactically cut off, which
// usually means the output token cap was hit. Repair cannot reconstruct
// missing content, so this is never repaired.
type TruncatedError struct {
	Raw string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("llm returned truncated JSON (likely hit the output token cap); first 400 chars:\n%s", head(e.Raw, 400))
}

// RepairError reports that the repair path also failed. Repaired holds
// the repair call's text when one was received.
type RepairError struct {
	Raw      string
	Repaired string
	Err      error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("llm JSON unusable after repair attempt: %v; original first 400 chars:\n%s", e.Err, head(e.Raw, 400))
}
func (e *RepairError) Unwrap() error { return e.Err }

// Result carries the recovered object plus the texts needed for audit
// artifacts.
type Result struct {
	Object     map[string]any
	Raw        string
	Repaired   string
	RepairUsed bool
}

// Prompts supplies the repair prompts so this package stays free of
// domain wording.
type Prompts struct {
	RepairSystem string
	Repair       func(badText string) string
}

// GenerateObject runs the generate call, parses, and on a non-truncation
// parse failure makes exactly one repair call.
func GenerateObject(ctx context.Context, client llmclient.Client, system, user string, p Prompts) (Result, error) {
	raw, err := client.GenerateJSON(ctx, system, user)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}

	obj, parseErr := ParseObject(raw)
	if parseErr == nil {
		return Result{Object: obj, Raw: raw}, nil
	}

	if LooksTruncated(raw) {
		return Result{}, &TruncatedError{Raw: raw}
	}

	repaired, err := client.GenerateJSON(ctx, p.RepairSystem, p.Repair(raw))
	if err != nil {
		return Result{}, &RepairError{Raw: raw, Err: err}
	}
	obj, err = ParseObject(repaired)
	if err != nil {
		return Result{}, &RepairError{Raw: raw, Repaired: repaired, Err: err}
	}
	return Result{Object: obj, Raw: raw, Repaired: repaired, RepairUsed: true}, nil
}

// ParseObject parses text as a JSON object, falling back to the first
// balanced object span when the text has surrounding noise.
func ParseObject(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("response was empty; expected a JSON object")
	}

	// Unmarshal into a map rejects valid non-object JSON too, so both
	// cases fall through to extraction.
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		if obj == nil {
			return nil, fmt.Errorf("response parsed but is not a JSON object")
		}
		return obj, nil
	}

	candidate, ok := ExtractObject(s)
	if !ok {
		return nil, fmt.Errorf("response was not valid JSON; first 400 chars:\n%s", head(s, 400))
	}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("salvaged span was not a JSON object")
	}
	return obj, nil
}

// LooksTruncated reports whether text appears to be a JSON object cut
// off mid-stream. Empty text is not truncated (it is simply empty).
func LooksTruncated(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return false
	}
	if !strings.HasSuffix(s, "}") {
		return true
	}

	inStr, esc := false, false
	bal := 0
	for _, ch := range s {
		if inStr {
			if esc {
				esc = false
			} else if ch == '\\' {
				esc = true
			} else if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			bal++
		case '}':
			bal--
		}
	}
	return bal != 0
}

// ExtractObject returns the first balanced {...} span in text, honoring
// string literals and escapes.
func ExtractObject(text string) (string, bool) {
	inStr, esc := false, false
	start := -1
	bal := 0
	for i, ch := range text {
		if inStr {
			if esc {
				esc = false
			} else if ch == '\\' {
				esc = true
			} else if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			if start < 0 {
				start = i
			}
			bal++
		case '}':
			if start >= 0 {
				bal--
				if bal == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
