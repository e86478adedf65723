package schema

import "strings"

type ChatMessageType string

const (
	ChatMessageTypeSystem  ChatMessageType = "system"
	ChatMessageTypeHuman   ChatMessageType = "human"
	ChatMessageTypeAI      ChatMessageType = "ai"
	ChatMessageTypeGeneric ChatMessageType = "generic"
)

// ChatMessageTypeFromRole maps chat roles ("user", "assistant", "system")
// onto message types. Unknown roles are generic.
func ChatMessageTypeFromRole(role string) ChatMessageType {
	switch strings.ToLower(role) {
	case "user", "human":
		return ChatMessageTypeHuman
	case "assistant", "ai":
		return ChatMessageTypeAI
	case "system":
		return ChatMessageTypeSystem
	default:
		return ChatMessageTypeGeneric
	}
}

type ContentPart interface {
	String() string
	isPart()
}

type TextContent struct {
	Text string
}

func (tc TextContent) String() string {
	return tc.Text
}

func (TextContent) isPart() {}

type MessageContent struct {
	Role  ChatMessageType
	Parts []ContentPart
}

// GetTextContent joins the non-empty text parts with newlines.
func (mc MessageContent) GetTextContent() string {
	parts := make([]string, 0, len(mc.Parts))
	for _, part := range mc.Parts {
		if s := part.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func (mc MessageContent) String() string {
	return mc.GetTextContent()
}

func NewTextMessage(role ChatMessageType, text string) MessageContent {
	return MessageContent{
		Role:  role,
		Parts: []ContentPart{TextContent{Text: text}},
	}
}

func NewSystemMessage(text string) MessageContent {
	return NewTextMessage(ChatMessageTypeSystem, text)
}

func NewHumanMessage(text string) MessageContent {
	return NewTextMessage(ChatMessageTypeHuman, text)
}

func NewAIMessage(text string) MessageContent {
	return NewTextMessage(ChatMessageTypeAI, text)
}
