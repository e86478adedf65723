package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/medrag/llms/fake"
	"github.com/sevigo/medrag/schema"
)

func TestLLM_GenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("responses cycle", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"first", "second"})

		for _, want := range []string{"first", "second", "first"} {
			resp, err := fakeLLM.GenerateContent(ctx, nil)
			require.NoError(t, err)
			require.Len(t, resp.Choices, 1)
			assert.Equal(t, want, resp.Choices[0].Content)
		}
		assert.Equal(t, 3, fakeLLM.GetCallCount())
	})

	t.Run("no responses configured", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM(nil)

		resp, err := fakeLLM.GenerateContent(ctx, nil)
		assert.ErrorIs(t, err, fake.ErrNoResponses)
		assert.Nil(t, resp)
	})

	t.Run("records the last message", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"ok"})

		_, err := fakeLLM.GenerateContent(ctx, []schema.MessageContent{
			schema.NewSystemMessage("be brief"),
			schema.NewHumanMessage("what is anemia?"),
		})
		require.NoError(t, err)

		prompt, ok := fakeLLM.LastPrompt()
		assert.True(t, ok)
		assert.Equal(t, "what is anemia?", prompt)
	})
}

func TestLLM_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("returns scripted answers", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"hello world"})

		result, err := fakeLLM.Call(ctx, "test prompt")
		require.NoError(t, err)
		assert.Equal(t, "hello world", result)
		assert.Equal(t, []string{"test prompt"}, fakeLLM.Prompts())
	})

	t.Run("injected error", func(t *testing.T) {
		boom := errors.New("410 Client Error: Gone")
		fakeLLM := fake.NewFakeLLM([]string{"unused"})
		fakeLLM.SetError(boom)

		result, err := fakeLLM.Call(ctx, "test prompt")
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, result)

		fakeLLM.SetError(nil)
		result, err = fakeLLM.Call(ctx, "test prompt")
		require.NoError(t, err)
		assert.Equal(t, "unused", result)
	})
}

func TestLLM_ResetAndAddResponse(t *testing.T) {
	ctx := context.Background()
	fakeLLM := fake.NewFakeLLM([]string{"first", "second"})

	_, err := fakeLLM.Call(ctx, "a")
	require.NoError(t, err)
	fakeLLM.Reset()

	result, err := fakeLLM.Call(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "first", result, "reset should rewind the cycle")
	assert.Equal(t, 1, fakeLLM.GetCallCount())

	fakeLLM.AddResponse("third")
	_, err = fakeLLM.Call(ctx, "c")
	require.NoError(t, err)
	result, err = fakeLLM.Call(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, "third", result)
}
