package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/timeplus-io/pulsebot/pkg/agent"
	channelslack "github.com/timeplus-io/pulsebot/pkg/channel/slack"
	"github.com/timeplus-io/pulsebot/pkg/config"
	"github.com/timeplus-io/pulsebot/pkg/contextbuilder"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	embeddinggemini "github.com/timeplus-io/pulsebot/pkg/embedding/gemini"
	embeddinglocal "github.com/timeplus-io/pulsebot/pkg/embedding/local"
	embeddingopenai "github.com/timeplus-io/pulsebot/pkg/embedding/openai"
	llmanthropic "github.com/timeplus-io/pulsebot/pkg/llm/anthropic"
	llmgemini "github.com/timeplus-io/pulsebot/pkg/llm/gemini"
	llmlocal "github.com/timeplus-io/pulsebot/pkg/llm/local"
	llmopenai "github.com/timeplus-io/pulsebot/pkg/llm/openai"
	"github.com/timeplus-io/pulsebot/pkg/memory"
	"github.com/timeplus-io/pulsebot/pkg/observability"
	"github.com/timeplus-io/pulsebot/pkg/scheduler"
	"github.com/timeplus-io/pulsebot/pkg/skill"
	"github.com/timeplus-io/pulsebot/pkg/skill/builtin"
	"github.com/timeplus-io/pulsebot/pkg/stream/clickhouse"
	"github.com/timeplus-io/pulsebot/pkg/stream/local"
)

// app bundles every long-lived component built from a loaded config,
// wiring provider polymorphism per §9: the concrete stream, LLM, and
// embedding backends are selected by config string tags, never by build
// tag or import-time side effect.
type app struct {
	cfg    *config.Config
	stream interfaces.Client
	llm    interfaces.LLMProvider
	memory interfaces.MemoryManager
	skills *skill.Registry
	obs    *observability.Writer
}

// newApp wires every component a run/chat/setup invocation needs from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	stream, err := newStreamClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build stream client")
	}

	skills := skill.New()
	if err := registerBuiltinSkills(skills, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to register builtin skills")
	}
	if err := skills.LoadInstructionSkills(ctx, cfg.Skills.SkillDirs, disabledSet(cfg.Skills.DisabledSkills)); err != nil {
		return nil, goerr.Wrap(err, "failed to load instruction skills")
	}

	llmProvider, err := newLLMProvider(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build llm provider")
	}

	var mem interfaces.MemoryManager
	if cfg.Memory.Enabled {
		embedder, err := newEmbeddingProvider(ctx, cfg)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build embedding provider")
		}
		mem = memory.New(stream, embedder, memory.WithSimilarityThreshold(cfg.Memory.SimilarityThreshold))
	}

	return &app{
		cfg:    cfg,
		stream: stream,
		llm:    llmProvider,
		memory: mem,
		skills: skills,
		obs:    observability.New(stream),
	}, nil
}

func newStreamClient(ctx context.Context, cfg *config.Config) (interfaces.Client, error) {
	if cfg.Database.Host == "" || cfg.Database.Host == "local" {
		return local.New(), nil
	}
	return clickhouse.New(ctx, clickhouse.Config{
		Host:       cfg.Database.Host,
		QueryPort:  cfg.Database.QueryPort,
		StreamPort: cfg.Database.StreamPort,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
	})
}

func newLLMProvider(ctx context.Context, cfg *config.Config) (interfaces.LLMProvider, error) {
	providerName := cfg.Agent.Provider
	pc, err := cfg.RequireProvider(providerName)
	if err != nil {
		return nil, err
	}
	model := cfg.Agent.Model
	if model == "" {
		model = pc.DefaultModel
	}

	switch providerName {
	case "anthropic":
		return llmanthropic.New(pc.APIKey, model, pc.Host), nil
	case "openai":
		return llmopenai.New(pc.APIKey, model), nil
	case "gemini":
		return llmgemini.New(ctx, pc.APIKey, pc.Host, model)
	case "local":
		return llmlocal.New(pc.Host, pc.APIKey, model, "local"), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", providerName)
	}
}

func newEmbeddingProvider(ctx context.Context, cfg *config.Config) (interfaces.EmbeddingProvider, error) {
	providerName := cfg.Memory.EmbeddingProvider
	pc, err := cfg.RequireProvider(providerName)
	if err != nil {
		return nil, err
	}
	model := cfg.Memory.EmbeddingModel
	if model == "" {
		model = pc.DefaultModel
	}

	switch providerName {
	case "openai":
		return embeddingopenai.New(pc.APIKey, model), nil
	case "gemini":
		return embeddinggemini.New(ctx, pc.APIKey, pc.Host, model)
	case "local":
		return embeddinglocal.New(pc.Host, pc.APIKey, model, "local"), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", providerName)
	}
}

func registerBuiltinSkills(registry *skill.Registry, cfg *config.Config) error {
	enabled := map[string]bool{}
	for _, name := range cfg.Skills.Builtin {
		enabled[name] = true
	}

	if enabled["shell"] {
		if err := registry.Register(builtin.NewShellSkill()); err != nil {
			return err
		}
	}
	if enabled["file_ops"] {
		fileOps, err := builtin.NewFileOpsSkill(".")
		if err != nil {
			return err
		}
		if err := registry.Register(fileOps); err != nil {
			return err
		}
	}
	if enabled["web_search"] {
		search, err := builtin.NewWebSearchSkill(cfg.Search.Provider, cfg.Search.APIKey, cfg.Search.URL)
		if err != nil {
			return err
		}
		if err := registry.Register(search); err != nil {
			return err
		}
	}
	return nil
}

func disabledSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// buildLoop assembles the agent loop from an already-wired app.
func (a *app) buildLoop() *agent.Loop {
	builder := contextbuilder.New(a.stream, a.memory, a.skills, a.cfg.Agent.Name, "")
	return agent.New(a.stream, a.llm, a.memory, a.skills, builder, a.obs, a.cfg.Agent.Name, a.cfg.Agent.Temperature, a.cfg.Agent.MaxTokens)
}

// buildScheduler assembles the scheduled-producer runner from an
// already-wired app.
func (a *app) buildScheduler() *scheduler.Runner {
	return scheduler.New(a.stream, a.obs, a.cfg.ScheduledTasks)
}

// buildChannels constructs every channel adapter enabled under
// cfg.Channels that needs an out-of-process event loop (the CLI channel
// is driven directly by `chat` instead). Currently that's just Slack.
func (a *app) buildChannels() ([]*channelslack.Adapter, error) {
	var adapters []*channelslack.Adapter

	slackCfg, ok := a.cfg.Channels["slack"]
	if !ok || !slackCfg.Enabled {
		return adapters, nil
	}

	adapter, err := channelslack.New(slackCfg.Credentials["app_token"], slackCfg.Credentials["bot_token"], slackCfg.AllowedUsers)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build slack channel")
	}
	adapter.BindStream(a.stream)
	adapters = append(adapters, adapter)
	return adapters, nil
}
