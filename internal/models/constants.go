package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n\n"
	HumanPrefix      = "Human"
	AssistantPrefix  = "Assistant"
)

var (
	// AnswerPromptTemplate is rendered with the context, chat_history and question slots.
	AnswerPromptTemplate = `You are a helpful assistant.
Answer ONLY from the provided transcript context and chat history.
If the context is insufficient, just say you don't know.
If the user greets you, respond with a friendly greeting.
Be conversational and refer to previous parts of the conversation when relevant.

Chat History:
{{.chat_history}}

Transcript context:
{{.context}}

Question: {{.question}}

Answer:`
)
