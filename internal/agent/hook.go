package agent

import "encoding/json"

const (
	HookNotification      = "Notification"
	HookPermissionRequest = "PermissionRequest"

	NotificationIdlePrompt = "idle_prompt"
	idleTitle              = "Claude is waiting"
)

type hookEnvelope struct {
	HookEventName string `json:"hook_event_name"`
}

type notificationInput struct {
	SessionID        string `json:"session_id"`
	Message          string `json:"message"`
	NotificationType string `json:"notification_type"`
}

type permissionRequestInput struct {
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
	ToolUseID *string         `json:"tool_use_id"`
}

// HookOutput is written to stdout when the remote user allowed the request.
type HookOutput struct {
	HookSpecificOutput HookSpecificOutput `json:"hookSpecificOutput"`
}

type HookSpecificOutput struct {
	HookEventName string       `json:"hookEventName"`
	Decision      HookDecision `json:"decision"`
}

type HookDecision struct {
	Behavior string `json:"behavior"`
}

func allowOutput() HookOutput {
	return HookOutput{
		HookSpecificOutput: HookSpecificOutput{
			HookEventName: HookPermissionRequest,
			Decision:      HookDecision{Behavior: "allow"},
		},
	}
}
