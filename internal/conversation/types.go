// Package conversation implements the durable conversation store: per-conversation
// JSON documents under a sharded directory layout plus a small rebuildable index,
// the message append/merge rules, and the pending-image queue that the ReAct
// orchestrator drains on each turn.
package conversation

import (
	"encoding/json"
	"time"
)

// Status values a Message can carry.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Role values a Message can carry.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ContentPart is one typed element of a multi-part message body. Only Text
// or ImagePath is set, selected by Type.
type ContentPart struct {
	Type      string `json:"type"` // "text" | "image_reference"
	Text      string `json:"text,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	Detail    string `json:"detail,omitempty"` // low | high | auto, image_reference only
}

// ToolCall is one function call embedded in an assistant Message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object serialized as a string, per the wire convention
}

// Message is one turn in a Conversation. Content holds the plain-string form;
// Parts holds the multi-part form under its own "parts" key. The two fields
// are marshaled independently (both are written when both are set).
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content,omitempty"`
	Parts     []ContentPart `json:"parts,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ClientMsgID supports idempotent append from a retried caller.
	ClientMsgID string `json:"client_msg_id,omitempty"`
	// GeneratedFiles are workspace-relative filenames attributed to this message.
	GeneratedFiles []string `json:"generated_files,omitempty"`

	// Assistant-only.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// OriginalParts preserves a provider-specific opaque blob (e.g. Gemini
	// thought signatures) so it can be echoed back verbatim on a later turn.
	OriginalParts json.RawMessage `json:"original_parts,omitempty"`

	// Tool-only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// PendingImage is one entry in a conversation's pending-image queue.
type PendingImage struct {
	Path           string `json:"path"`
	Detail         string `json:"detail"` // low | high | auto
	RemainingViews int    `json:"remaining_views"`
}

// Conversation is the full persisted document for one conversation.
// Only the fields declared here are read and written; fields unknown to this
// version are dropped when the document is rewritten.
type Conversation struct {
	ConvID    string    `json:"conv_id"`
	User      string    `json:"user"` // "" means anonymous
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OutputDir string    `json:"output_dir"`

	Messages      []Message      `json:"messages"`
	PendingImages []PendingImage `json:"pending_images"`

	// Extra is excluded from JSON: decoding does not fill it and encoding
	// does not write it, so it does not carry unknown fields across a
	// persist-load-persist round trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// Metadata is the small, index-resident summary of a Conversation.
type Metadata struct {
	ConvID    string    `json:"conv_id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      string    `json:"user"`
	OutputDir string    `json:"output_dir"`
}

func metadataOf(c Conversation) Metadata {
	return Metadata{
		ConvID:    c.ConvID,
		Title:     c.Title,
		Model:     c.Model,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		User:      c.User,
		OutputDir: c.OutputDir,
	}
}

// MessageSelector identifies the message a update_message patch applies to.
type MessageSelector struct {
	ID               string
	ClientMsgID      string
	LastInProgressAssistant bool
}

// MessagePatch describes a partial update to a selected message.
type MessagePatch struct {
	// SetContent overwrites Content when non-nil.
	SetContent *string
	// AppendContent is concatenated onto the existing Content when non-empty.
	AppendContent string
	// MergeGeneratedFiles is unioned into the existing GeneratedFiles set.
	MergeGeneratedFiles []string
	// SetStatus transitions Status when non-empty.
	SetStatus string
}
