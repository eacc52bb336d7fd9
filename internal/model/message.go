package model

import "github.com/openai/openai-go/v3"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one model-issued request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry in the running conversation. Assistant messages
// produced by the real client also carry the provider's wire form so
// tool-call messages round-trip exactly on the next request.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string

	raw *openai.ChatCompletionMessageParamUnion
}

// Conversation is an append-only message history for one run.
type Conversation struct {
	messages []Message
}

// NewConversation starts a history with the given system instruction.
func NewConversation(systemInstruction string) *Conversation {
	conv := &Conversation{}
	conv.AddSystem(systemInstruction)
	return conv
}

// AddSystem appends a system message.
func (c *Conversation) AddSystem(content string) {
	c.messages = append(c.messages, Message{Role: RoleSystem, Content: content})
}

// AddUser appends a user message.
func (c *Conversation) AddUser(content string) {
	c.messages = append(c.messages, Message{Role: RoleUser, Content: content})
}

// AddToolResult appends the compact result of one executed tool call.
func (c *Conversation) AddToolResult(toolCallID, content string) {
	c.messages = append(c.messages, Message{Role: RoleTool, Content: content, ToolCallID: toolCallID})
}

// Add appends an arbitrary message, typically the assistant reply returned by
// Complete.
func (c *Conversation) Add(msg Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns the history in order.
func (c *Conversation) Messages() []Message {
	return c.messages
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// ToolDefinition describes one callable tool advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Options parameterizes one completion call.
type Options struct {
	// Model overrides the configured default when non-empty.
	Model string
	// Tools lists the tool definitions for this call. Empty disables tools.
	Tools []ToolDefinition
	// SchemaName and Schema describe the strict output format.
	SchemaName string
	Schema     map[string]any
}

// Response is the model's reply: either tool-call requests or final content.
type Response struct {
	// Message is the assistant reply to append to the conversation.
	Message Message
	// ToolCalls is non-empty when the model requests tool execution.
	ToolCalls []ToolCall
	// Content holds the final structured text when no tools were requested.
	Content string
	// Model is the provider-reported model that served the call.
	Model string
}
