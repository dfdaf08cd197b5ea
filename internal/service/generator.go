package service

import (
	"context"
	"fmt"
	"strings"
)

// Completer 外部文本生成服务
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Content 生成结果
type Content struct {
	Prompt string
	Text   string
}

type Generator struct {
	llm Completer
}

func NewGenerator(llm Completer) *Generator {
	return &Generator{llm: llm}
}

// Generate 同步调用一次模型。出错或返回空内容时失败，不重试也不使用占位内容。
func (g *Generator) Generate(ctx context.Context, p *ResolvedProfile) (*Content, error) {
	prompt := BuildPrompt(p)

	text, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: text generation: %v", ErrUpstream, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text generation returned empty content", ErrUpstream)
	}

	summary := SummarySentence(p)
	if !strings.HasPrefix(text, summary) {
		text = summary + "\n\n" + text
	}
	return &Content{Prompt: prompt, Text: text}, nil
}
