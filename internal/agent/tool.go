package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	writePreviewLen   = 100
	editPreviewLen    = 50
	unknownPreviewLen = 200
)

type bashInput struct {
	Command     *string `json:"command"`
	Description *string `json:"description"`
}

type writeInput struct {
	FilePath *string `json:"file_path"`
	Content  *string `json:"content"`
}

type editInput struct {
	FilePath  *string `json:"file_path"`
	OldString *string `json:"old_string"`
	NewString *string `json:"new_string"`
}

type readInput struct {
	FilePath *string `json:"file_path"`
}

// FormatTool renders a tool invocation as a notification title and body.
// Inputs missing their required fields are shown as raw JSON.
func FormatTool(toolName string, input json.RawMessage) (title, message string) {
	switch toolName {
	case "Bash":
		var in bashInput
		if json.Unmarshal(input, &in) == nil && in.Command != nil {
			if in.Description != nil {
				return "Bash Command", *in.Description + "\n\n" + *in.Command
			}
			return "Bash Command", *in.Command
		}
	case "Write":
		var in writeInput
		if json.Unmarshal(input, &in) == nil && in.FilePath != nil && in.Content != nil {
			return "Write File", *in.FilePath + "\n\n" + truncate(*in.Content, writePreviewLen)
		}
	case "Edit":
		var in editInput
		if json.Unmarshal(input, &in) == nil && in.FilePath != nil && in.OldString != nil && in.NewString != nil {
			return "Edit File", fmt.Sprintf("%s\n\n- %s\n+ %s",
				*in.FilePath,
				truncate(*in.OldString, editPreviewLen),
				truncate(*in.NewString, editPreviewLen))
		}
	case "Read":
		var in readInput
		if json.Unmarshal(input, &in) == nil && in.FilePath != nil {
			return "Read File", *in.FilePath
		}
	}

	return "Tool: " + toolName, truncate(compactJSON(input), unknownPreviewLen)
}

// truncate counts runes so multi-byte text is never split.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
