package agentswarm

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/hupe1980/agentswarm/config"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/model/anthropic"
	"github.com/hupe1980/agentswarm/model/openai"
	"github.com/hupe1980/agentswarm/rank"
)

// NewLogger builds the structured logger described by cfg.
func NewLogger(cfg config.LoggingConfig) *logging.SwarmLogger {
	return logging.NewSlogLogger(logging.ParseLevel(cfg.Level), cfg.Format, cfg.AddSource)
}

// NewGenerator builds the text generator selected by cfg.Provider. The
// "mock" provider echoes prompts and is meant for local runs.
func NewGenerator(cfg config.ModelConfig) (model.Generator, error) {
	switch cfg.Provider {
	case "openai":
		client := openaisdk.NewClient(openaiOptions(cfg)...)
		return openai.NewGeneratorFromClient(&client, func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
		}), nil
	case "anthropic":
		var opts []anthropicoption.RequestOption
		if cfg.APIKey != "" {
			opts = append(opts, anthropicoption.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
		}
		client := anthropicsdk.NewClient(opts...)
		return anthropic.NewGeneratorFromClient(&client, func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
		}), nil
	case "mock":
		return model.NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// NewEmbedder returns an OpenAI embedder when cfg asks for one, else nil.
func NewEmbedder(cfg config.ModelConfig) rank.Embedder {
	if cfg.Provider != "openai" || cfg.EmbeddingModel == "" {
		return nil
	}
	client := openaisdk.NewClient(openaiOptions(cfg)...)
	return openai.NewEmbedderFromClient(&client, func(o *openai.EmbedderOptions) {
		o.Model = cfg.EmbeddingModel
	})
}

func openaiOptions(cfg config.ModelConfig) []openaioption.RequestOption {
	var opts []openaioption.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, openaioption.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(cfg.BaseURL))
	}
	return opts
}
