// Package model 定义工作流调用的输入输出
package model

import "time"

// AnswerGenerateInput 答案生成的模型调用参数
type AnswerGenerateInput struct {
	SystemPrompt string
	UserPrompt   string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// AnswerGenerateOutput 答案与调用元数据
type AnswerGenerateOutput struct {
	Content string
	Usage   AnswerUsage
}

// AnswerUsage 单次生成的 token 用量与耗时
type AnswerUsage struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// TotalTokens prompt 与 completion 之和
func (u AnswerUsage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}
