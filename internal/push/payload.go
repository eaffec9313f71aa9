package push

// Payload is the JSON body carried in the push message. Field names are part
// of the contract with paired devices.
type Payload struct {
	Title              string       `json:"title"`
	Body               string       `json:"body"`
	Icon               string       `json:"icon,omitempty"`
	Badge              string       `json:"badge,omitempty"`
	Tag                string       `json:"tag,omitempty"`
	Renotify           bool         `json:"renotify,omitempty"`
	RequireInteraction *bool        `json:"requireInteraction,omitempty"`
	Actions            []Action     `json:"actions,omitempty"`
	Data               *PayloadData `json:"data,omitempty"`
}

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

type PayloadData struct {
	DecisionID string `json:"decisionId,omitempty"`
	ToolUseID  string `json:"toolUseId,omitempty"`
	Type       string `json:"type,omitempty"`
}

const (
	DefaultTitle = "Claude Code"
	DefaultIcon  = "/icon-192.png"
	DefaultBadge = "/badge-72.png"
	DefaultTag   = "claude-code-notification"

	ActionAllow      = "allow"
	DataTypeDecision = "decision"
)

// DecisionPayload builds the notification for a pending decision: tagged by
// tool use so repeated pushes for the same invocation collapse, with an allow
// action and the metadata the device needs to submit back.
func DecisionPayload(decisionID, toolUseID, title, message string) Payload {
	requireInteraction := true
	return Payload{
		Title:              title,
		Body:               message,
		Icon:               DefaultIcon,
		Badge:              DefaultBadge,
		Tag:                toolUseID,
		Renotify:           true,
		RequireInteraction: &requireInteraction,
		Actions:            []Action{{Action: ActionAllow, Title: "Allow"}},
		Data: &PayloadData{
			DecisionID: decisionID,
			ToolUseID:  toolUseID,
			Type:       DataTypeDecision,
		},
	}
}

// SimplePayload builds an informational notification with no decision attached.
func SimplePayload(title, message string) Payload {
	return Payload{
		Title: title,
		Body:  message,
		Icon:  DefaultIcon,
		Badge: DefaultBadge,
	}
}
