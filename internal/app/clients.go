package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/curriculum-backend/internal/clients/anthropic"
	"github.com/yungbote/curriculum-backend/internal/clients/openai"
	"github.com/yungbote/curriculum-backend/internal/clients/redis"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/digest"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type Clients struct {
	Redis       *goredis.Client
	JobBus      redis.JobBus
	DigestCache digest.Cache
	Provider    llm.Provider
	Embedder    llm.Embedder
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	provider, embedder, err := SelectProviders(log, cfg)
	if err != nil {
		return Clients{}, err
	}
	out := Clients{Provider: provider, Embedder: embedder}

	// Redis is optional; without it job events stay in the database only.
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(cfg.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		bus, err := redis.NewJobBus(log, rdb, cfg.RedisJobChannel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis job bus: %w", err)
		}
		out.Redis = rdb
		out.JobBus = bus
		out.DigestCache = redis.NewDigestCache(rdb, cfg.DigestCacheTTL())
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// SelectProviders resolves LLM_PROVIDER into a completion provider and an embedder.
// "auto" prefers OpenAI, then Anthropic, then the deterministic stub. Anthropic has no
// embeddings endpoint, so it is paired with OpenAI embeddings when a key exists and the
// stub embedder otherwise.
func SelectProviders(log *logger.Logger, cfg Config) (llm.Provider, llm.Embedder, error) {
	oaCfg := openai.ConfigFromEnv()
	anCfg := anthropic.ConfigFromEnv()

	mode := cfg.LLMProvider
	if mode == "" || mode == ProviderAuto {
		switch {
		case oaCfg.APIKey != "":
			mode = ProviderOpenAI
		case anCfg.APIKey != "":
			mode = ProviderAnthropic
		default:
			mode = ProviderStub
		}
	}

	var (
		provider llm.Provider
		embedder llm.Embedder
	)
	switch mode {
	case ProviderOpenAI:
		c, err := openai.NewClient(log, oaCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("init openai client: %w", err)
		}
		provider, embedder = c, c
	case ProviderAnthropic:
		c, err := anthropic.NewClient(log, anCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("init anthropic client: %w", err)
		}
		provider = c
		if oaCfg.APIKey != "" {
			oa, err := openai.NewClient(log, oaCfg)
			if err != nil {
				return nil, nil, fmt.Errorf("init openai embeddings: %w", err)
			}
			embedder = oa
		} else {
			log.Warn("No OPENAI_API_KEY; using stub embeddings with the anthropic provider")
			embedder = llm.NewStubEmbedder()
		}
	case ProviderStub:
		provider, embedder = llm.NewStubProvider(), llm.NewStubEmbedder()
	default:
		return nil, nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	log.Info("LLM provider selected",
		"provider", llm.NameOf(provider),
		"embedder", llm.NameOf(embedder),
		"embed_model", llm.ModelOf(embedder),
		"call_timeout", cfg.LLMCallTimeout().String(),
	)
	return llm.Instrument(llm.WithTimeout(provider, cfg.LLMCallTimeout())), llm.InstrumentEmbedder(embedder), nil
}
