package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	einoobs "fin-rag-api/internal/observability/eino"
	wfmodel "fin-rag-api/internal/workflow/model"
	workflowport "fin-rag-api/internal/workflow/port"
	"fin-rag-api/pkg/logger"
)

const (
	answerWorkflow = "answer"

	defaultAnswerTemperature float32 = 0.1
	defaultAnswerMaxTokens           = 1000
)

// AnswerChain 基于 ChatModel 的答案生成
type AnswerChain struct {
	factory     workflowport.ChatModelFactory
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

// AnswerChainOptions 未设置的字段使用默认值
type AnswerChainOptions struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   int
}

func NewAnswerChain(factory workflowport.ChatModelFactory, opts AnswerChainOptions) *AnswerChain {
	c := &AnswerChain{
		factory:     factory,
		provider:    strings.TrimSpace(opts.Provider),
		model:       strings.TrimSpace(opts.Model),
		temperature: defaultAnswerTemperature,
		maxTokens:   defaultAnswerMaxTokens,
	}
	if opts.Temperature != nil {
		c.temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		c.maxTokens = opts.MaxTokens
	}
	return c
}

// Generate 以 system/user 两条消息调用模型，返回文本答案
func (c *AnswerChain) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	temperature := c.temperature
	maxTokens := c.maxTokens
	out, err := c.Invoke(ctx, &wfmodel.AnswerGenerateInput{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Provider:     c.provider,
		Model:        c.model,
		Temperature:  &temperature,
		MaxTokens:    &maxTokens,
	})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *AnswerChain) Invoke(ctx context.Context, in *wfmodel.AnswerGenerateInput) (*wfmodel.AnswerGenerateOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.UserPrompt) == "" {
		return nil, fmt.Errorf("user prompt is required")
	}

	provider := strings.TrimSpace(in.Provider)
	ctx = einoobs.WithWorkflowProvider(ctx, answerWorkflow, provider)
	ctx = einocallbacks.InitCallbacks(ctx, &einocallbacks.RunInfo{
		Name:      answerWorkflow,
		Type:      provider,
		Component: components.ComponentOfChatModel,
	})

	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	msgs := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(in.SystemPrompt) != "" {
		msgs = append(msgs, schema.SystemMessage(in.SystemPrompt))
	}
	msgs = append(msgs, schema.UserMessage(in.UserPrompt))

	start := time.Now()
	outMsg, err := chatModel.Generate(ctx, msgs, buildAnswerModelOptions(in)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	usage := wfmodel.AnswerUsage{
		Provider: provider,
		Model:    strings.TrimSpace(in.Model),
		Latency:  time.Since(start),
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		usage.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		usage.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}
	logger.Debug(ctx, "answer generated",
		"provider", usage.Provider,
		"model", usage.Model,
		"total_tokens", usage.TotalTokens(),
		"latency_ms", usage.Latency.Milliseconds(),
	)

	return &wfmodel.AnswerGenerateOutput{
		Content: outMsg.Content,
		Usage:   usage,
	}, nil
}

func buildAnswerModelOptions(in *wfmodel.AnswerGenerateInput) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}
