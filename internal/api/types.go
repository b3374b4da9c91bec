// ABOUTME: Core data types exchanged with the Parlor backend
// ABOUTME: Defines Agent, Conversation, ChatMessage and GenerationPreview

package api

import "time"

// Message roles as stored in transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Chat types for conversation creation.
const (
	ChatTypeAgent = "agent_dm"
)

// Agent is an AI persona users converse with. Metadata is effectively
// immutable for the duration of a session; the directory cache owns
// whatever copy it fetched.
type Agent struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Conversation is a durable channel between the requester and a target.
// Creation is idempotent server-side: repeating the create call for the
// same (requester, target) pair returns the same id.
type Conversation struct {
	ID        string `json:"id"`
	ChatType  string `json:"chat_type"`
	TargetID  string `json:"target_id"`
	LayerUsed string `json:"layer_used,omitempty"`
}

// ChatMessage is one turn in a conversation transcript. Transcripts are
// append-only and ordered by creation time.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerationPreview is a server-owned, single-consumption draft of
// AI-authored content. It is consumed exactly once, by confirm or cancel,
// and never re-enters the generated state under the same id.
type GenerationPreview struct {
	PreviewID   string    `json:"preview_id"`
	EntityID    string    `json:"entity_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	Topic       string    `json:"topic,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GenerateParams describes a preview generation request. Feedback and
// PreviousPreviewID are set on regeneration so the server treats the
// request as a refinement of the prior draft.
type GenerateParams struct {
	EntityID          string `json:"entity_id"`
	Topic             string `json:"topic,omitempty"`
	Prompt            string `json:"prompt,omitempty"`
	MediaKind         string `json:"media_kind,omitempty"`
	Feedback          string `json:"feedback,omitempty"`
	PreviousPreviewID string `json:"previous_preview_id,omitempty"`
}

// PreviewEdits carries optional field overrides submitted with a confirm.
// Nil fields leave the generated value untouched.
type PreviewEdits struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}
