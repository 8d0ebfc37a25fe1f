package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/chat"
	chat "github.com/zhouzirui/sentiscope/backend/internal/service/chat"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
)

type stubSource struct {
	registry *models.Registry
	client   completion.Client
}

func (s *stubSource) New(ctx context.Context, key string) (completion.Client, models.Spec, error) {
	spec, err := s.registry.Lookup(key)
	if err != nil {
		return nil, models.Spec{}, err
	}
	return s.client, spec, nil
}

func (s *stubSource) Registry() *models.Registry { return s.registry }

func newConversation(client completion.Client) (*chat.Conversation, chat.Store) {
	store := chat.NewMemoryStore()
	source := &stubSource{registry: models.DefaultRegistry(), client: client}
	conv := chat.NewConversation(store, source, chat.ConversationOptions{
		SystemPrompt: "be nice",
		DefaultModel: "gpt",
	}, logging.Nop())
	return conv, store
}

func echoClient(seen *[]completion.Request) completion.Client {
	return completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		*seen = append(*seen, req)
		return &completion.Response{
			Content: "echo: " + req.InputText,
			Usage:   completion.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
		}, nil
	})
}

func TestSendCarriesHistory(t *testing.T) {
	var seen []completion.Request
	conv, store := newConversation(echoClient(&seen))
	ctx := context.Background()

	_, err := conv.Send(ctx, "s", "first")
	require.NoError(t, err)
	reply, err := conv.Send(ctx, "s", "second")
	require.NoError(t, err)
	assert.Equal(t, "echo: second", reply.Content)
	assert.Equal(t, "gpt", reply.Model)

	require.Len(t, seen, 2)
	assert.Empty(t, seen[0].History)
	assert.Equal(t, []model.Record{
		{Role: model.Human, Content: "first"},
		{Role: model.Assistant, Content: "echo: first"},
	}, seen[1].History)
	assert.Equal(t, "be nice", seen[1].Instructions)

	count, err := store.Count(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSendFailureLeavesHistoryUntouched(t *testing.T) {
	conv, store := newConversation(completion.ClientFunc(func(ctx context.Context, req completion.Request) (*completion.Response, error) {
		return nil, &completion.Error{Kind: completion.KindTimeout, Err: errors.New("slow")}
	}))
	ctx := context.Background()

	_, err := conv.Send(ctx, "s", "hello")
	require.Error(t, err)
	assert.Equal(t, completion.KindTimeout, completion.KindOf(err))

	count, err := store.Count(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSessionsAreIsolated(t *testing.T) {
	var seen []completion.Request
	conv, _ := newConversation(echoClient(&seen))
	ctx := context.Background()

	_, err := conv.Send(ctx, "a", "for a")
	require.NoError(t, err)
	_, err = conv.Send(ctx, "b", "for b")
	require.NoError(t, err)

	assert.Empty(t, seen[1].History)
}

func TestExecuteCommands(t *testing.T) {
	var seen []completion.Request
	conv, store := newConversation(echoClient(&seen))
	ctx := context.Background()

	res, err := conv.Execute(ctx, "s", "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", res.Output)

	res, err = conv.Execute(ctx, "s", "/history")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "human: hello")
	assert.Contains(t, res.Output, "assistant: echo: hello")

	res, err = conv.Execute(ctx, "s", "/usage")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Calls: 1")
	assert.Contains(t, res.Output, "total: 120 tokens")

	res, err = conv.Execute(ctx, "s", "/model gpt-mini")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "gpt-mini")
	assert.Equal(t, "gpt-mini", conv.ModelFor("s"))
	assert.Equal(t, "gpt", conv.ModelFor("other"))

	_, err = conv.Execute(ctx, "s", "/model nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available:")
	assert.Equal(t, "gpt-mini", conv.ModelFor("s"))

	res, err = conv.Execute(ctx, "s", "/models")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "* gpt-mini")

	res, err = conv.Execute(ctx, "s", "/clear")
	require.NoError(t, err)
	assert.Equal(t, "Session cleared.", res.Output)
	count, err := store.Count(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = conv.Execute(ctx, "s", "/dance")
	assert.ErrorIs(t, err, chat.ErrUnknownCommand)

	res, err = conv.Execute(ctx, "s", "/quit")
	require.NoError(t, err)
	assert.True(t, res.Quit)

	res, err = conv.Execute(ctx, "s", "   ")
	require.NoError(t, err)
	assert.Empty(t, res.Output)
}

func TestUsageTracksCostPerModel(t *testing.T) {
	var seen []completion.Request
	conv, _ := newConversation(echoClient(&seen))
	ctx := context.Background()

	_, err := conv.Send(ctx, "s", "one")
	require.NoError(t, err)
	_, err = conv.SetModel(ctx, "s", "gpt-mini")
	require.NoError(t, err)
	_, err = conv.Send(ctx, "s", "two")
	require.NoError(t, err)

	summary := conv.Usage("s")
	assert.Equal(t, 2, summary.Calls)
	assert.Equal(t, 240, summary.Total.TotalTokens)
	require.Len(t, summary.ByModel, 2)
	assert.Equal(t, "gpt", summary.ByModel[0].Model)
	assert.Greater(t, summary.ByModel[0].Cost, summary.ByModel[1].Cost)
	assert.Zero(t, conv.Usage("nobody").Calls)
}
