package prompts

// RelevancePrompt asks a model whether retrieved passages can answer a
// medical question.
var RelevancePrompt = NewPromptTemplate(
	`You are checking whether reference passages from a medical library can help answer a patient's question.

Passages:
---
{{.context}}
---

Question: {{.query}}

Do the passages contain information that is likely to be helpful in answering the question?
Answer only with "yes" or "no".

Answer:`)
