package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// FallbackAssistantReply keeps the conversation coherent when the answer
	// endpoint fails: every user turn still gets exactly one assistant turn.
	FallbackAssistantReply = "Sorry, I couldn't come up with an answer just now. Please try again in a moment."

	// PersistMessageTopic carries best-effort message persistence jobs on the
	// in-process event bus.
	PersistMessageTopic = "chat.persist.message"
)
