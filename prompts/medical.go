package prompts

// MedicalQAPrompt grounds answers in the retrieved passages.
var MedicalQAPrompt = NewPromptTemplate(
	`Use the following pieces of context to answer the user's question. If you don't know the answer, just say that you don't know, don't try to make up an answer.

Context:
{{.context}}

Question: {{.query}}

Only return the helpful answer below and nothing else.
Helpful answer:`)
