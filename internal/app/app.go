// Package app wires the planner service from configuration for both entry
// points.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"trip-planner/internal/config"
	"trip-planner/internal/integrations/gemini"
	"trip-planner/internal/integrations/openai"
	"trip-planner/internal/integrations/paramstore"
	"trip-planner/internal/planner"
	"trip-planner/internal/session"
)

// keySource matches both openai.KeySource and gemini.KeySource.
type keySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Build returns the planner service and a cleanup func that releases the
// clients it opened.
func Build(ctx context.Context, cfg *config.Config) (*planner.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("cleanup failed", "err", err)
			}
		}
	}

	var awsCfg aws.Config
	if cfg.UsesAWS() {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = loaded
	}

	keys, err := newKeySource(cfg, awsCfg)
	if err != nil {
		return nil, cleanup, err
	}

	llm, closeLLM, err := newLLMClient(cfg, keys)
	if err != nil {
		return nil, cleanup, err
	}
	if closeLLM != nil {
		closers = append(closers, closeLLM)
	}

	store, closeStore, err := newSessionStore(ctx, cfg, awsCfg)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	requester, err := planner.NewRequester(llm, cfg.LLM.Model)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("app: create requester: %w", err)
	}
	svc, err := planner.NewService(requester, store)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("app: create service: %w", err)
	}
	return svc, cleanup, nil
}

func newKeySource(cfg *config.Config, awsCfg aws.Config) (keySource, error) {
	if cfg.LLM.ParamPrefix == "" {
		return openai.StaticKey(cfg.LLM.APIKey), nil
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	ts, err := paramstore.NewTokenSource(ssmClient, cfg.LLM.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("app: create token source: %w", err)
	}
	slog.Info("LLM API token read from SSM", "parameter", ts.ParameterName())
	return ts, nil
}

func newLLMClient(cfg *config.Config, keys keySource) (planner.LLMClient, func() error, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		p, err := gemini.NewProvider(keys)
		if err != nil {
			return nil, nil, fmt.Errorf("app: create gemini provider: %w", err)
		}
		return p, p.Close, nil
	case config.ProviderGroq, config.ProviderOpenAI:
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" && cfg.LLM.Provider == config.ProviderOpenAI {
			baseURL = openai.OpenAIBaseURL
		}
		c, err := openai.NewClient(keys, openai.WithBaseURL(baseURL), openai.WithTimeout(cfg.LLM.Timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("app: create chat client: %w", err)
		}
		return c, nil, nil
	default:
		return nil, nil, fmt.Errorf("app: unsupported LLM provider %q", cfg.LLM.Provider)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (planner.SessionStore, func() error, error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(cfg.Session.TTL), nil, nil
	case config.BackendDynamoDB:
		store, err := session.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.Session.Table, cfg.Session.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("app: create dynamodb session store: %w", err)
		}
		return store, nil, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("app: ping redis: %w", err)
		}
		store, err := session.NewRedisStore(rdb, cfg.Session.TTL)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("app: create redis session store: %w", err)
		}
		return store, rdb.Close, nil
	default:
		return nil, nil, errors.New("app: unsupported session backend " + cfg.Session.Backend)
	}
}
