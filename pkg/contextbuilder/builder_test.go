package contextbuilder_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timeplus-io/pulsebot/pkg/contextbuilder"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/memory"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/skill"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

type fakeEmbedder struct{ vec []float32 }

func (f *fakeEmbedder) ProviderName() string                       { return "fake" }
func (f *fakeEmbedder) Model() string                               { return "fake-model" }
func (f *fakeEmbedder) Dimensions(ctx context.Context) (int, error) { return len(f.vec), nil }
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func TestBuildIncludesHistoryToolsAndMemory(t *testing.T) {
	ctx := context.Background()
	stream := local.New()

	gt.NoError(t, messagelog.Insert(ctx, stream, &model.Message{
		ID: "m1", Timestamp: time.Now().UTC(), Source: "cli", Target: model.TargetAgent,
		SessionID: "s1", MessageType: types.MessageTypeUserInput,
		Content: map[string]any{"text": "what's the weather"},
	})).Required()

	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	mgr := memory.New(stream, embedder)
	_, err := mgr.Store(ctx, "user lives in Tokyo", types.MemoryTypeFact, types.MemoryCategoryUserInfo, 0.9, "s1", false)
	gt.NoError(t, err).Required()

	registry := skill.New()

	builder := contextbuilder.New(stream, mgr, registry, "pulsebot", "Be concise.")

	built, err := builder.Build(ctx, contextbuilder.Request{
		SessionID:     "s1",
		UserMessage:   "what's the weather",
		IncludeMemory: true,
		MemoryLimit:   5,
	})
	gt.NoError(t, err).Required()

	gt.Array(t, built.Messages).Length(1)
	gt.Value(t, built.Messages[0].Role).Equal(interfaces.RoleUser)
	gt.True(t, strings.Contains(built.SystemPrompt, "pulsebot"))
	gt.True(t, strings.Contains(built.SystemPrompt, "Tokyo"))
	gt.True(t, strings.Contains(built.SystemPrompt, "Be concise."))
}

func TestBuildDegradesGracefullyWithoutMemory(t *testing.T) {
	ctx := context.Background()
	stream := local.New()

	builder := contextbuilder.New(stream, nil, nil, "pulsebot", "")
	built, err := builder.Build(ctx, contextbuilder.Request{
		SessionID:     "s1",
		UserMessage:   "hello",
		IncludeMemory: true,
	})
	gt.NoError(t, err).Required()
	gt.Array(t, built.Messages).Length(0)
	gt.True(t, strings.Contains(built.SystemPrompt, "pulsebot"))
}
