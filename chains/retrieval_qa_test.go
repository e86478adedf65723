package chains_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/chains"
	"github.com/sevigo/medrag/llms/fake"
	"github.com/sevigo/medrag/prompts"
	"github.com/sevigo/medrag/schema"
	fakeretriever "github.com/sevigo/medrag/schema/fake"
)

func TestRetrievalQA_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("Success with documents", func(t *testing.T) {
		retrievedDocs := []schema.Document{
			{PageContent: "Fever is a temporary rise in body temperature."},
			{PageContent: "Common causes include infections."},
		}
		expectedPrompt := prompts.MedicalQAPrompt.Format(map[string]string{
			"context": "Fever is a temporary rise in body temperature.\n\n---\n\nCommon causes include infections.",
			"query":   "What causes fever?",
		})

		fakeLLM := fake.NewFakeLLM([]string{"Usually an infection."})
		fakeRetriever := fakeretriever.NewRetriever()
		fakeRetriever.DocsToReturn = retrievedDocs

		ragChain := chains.NewRetrievalQA(fakeRetriever, fakeLLM)
		answer, sources, err := ragChain.CallWithSources(ctx, "What causes fever?")

		require.NoError(t, err)
		assert.Equal(t, "Usually an infection.", answer)
		assert.Equal(t, retrievedDocs, sources)
		assert.Equal(t, "What causes fever?", fakeRetriever.LastQuery())

		lastPrompt, _ := fakeLLM.LastPrompt()
		assert.Equal(t, expectedPrompt, lastPrompt)
		assert.True(t, strings.HasPrefix(lastPrompt, "Use the following pieces of context"))
	})

	t.Run("Fallback when no documents are found", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"I don't know."})
		fakeRetriever := fakeretriever.NewRetriever()

		ragChain := chains.NewRetrievalQA(fakeRetriever, fakeLLM)
		answer, err := ragChain.Call(ctx, "A question with no context.")

		require.NoError(t, err)
		assert.Equal(t, "I don't know.", answer)

		lastPrompt, _ := fakeLLM.LastPrompt()
		assert.Equal(t, "A question with no context.", lastPrompt)
	})

	t.Run("Error during document retrieval", func(t *testing.T) {
		retrievalErr := errors.New("database connection failed")
		fakeLLM := fake.NewFakeLLM([]string{})
		fakeRetriever := fakeretriever.NewRetriever()
		fakeRetriever.ErrToReturn = retrievalErr

		ragChain := chains.NewRetrievalQA(fakeRetriever, fakeLLM)
		_, err := ragChain.Call(ctx, "Any question.")

		require.Error(t, err)
		assert.ErrorIs(t, err, retrievalErr)
		assert.Contains(t, err.Error(), "document retrieval failed")
		assert.Equal(t, 0, fakeLLM.GetCallCount(), "LLM should not have been called when retrieval fails")
	})

	t.Run("Empty query", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"unused"})
		ragChain := chains.NewRetrievalQA(fakeretriever.NewRetriever(), fakeLLM)

		_, err := ragChain.Call(ctx, "   ")
		require.ErrorIs(t, err, chains.ErrEmptyQuery)
		assert.Equal(t, 0, fakeLLM.GetCallCount())
	})

	t.Run("Model error is returned", func(t *testing.T) {
		modelErr := errors.New("410 Client Error: Gone")
		fakeLLM := fake.NewFakeLLM([]string{"unused"})
		fakeLLM.SetError(modelErr)
		fakeRetriever := fakeretriever.NewRetriever()
		fakeRetriever.DocsToReturn = []schema.Document{{PageContent: "ctx"}}

		_, err := chains.NewRetrievalQA(fakeRetriever, fakeLLM).Call(ctx, "q")
		require.ErrorIs(t, err, modelErr)
	})

	t.Run("Custom prompt", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"ok"})
		fakeRetriever := fakeretriever.NewRetriever()
		fakeRetriever.DocsToReturn = []schema.Document{{PageContent: "A"}, {PageContent: "B"}}

		ragChain := chains.NewRetrievalQA(fakeRetriever, fakeLLM,
			chains.WithPrompt(prompts.NewPromptTemplate("{{.query}}|{{.context}}")))
		_, err := ragChain.Call(ctx, "q")
		require.NoError(t, err)

		lastPrompt, _ := fakeLLM.LastPrompt()
		assert.Equal(t, "q|A\n\n---\n\nB", lastPrompt)
	})
}
