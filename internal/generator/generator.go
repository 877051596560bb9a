// Package generator adapts streaming LLM chat backends to the rag.Generator
// interface. Models are constructed through the Eino component ecosystem so
// any backend Eino supports (Ollama, OpenAI, Azure OpenAI, Google Gemini)
// plugs in without touching the RAG core.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// EinoGenerator implements rag.Generator on top of an Eino chat model.
// It is safe for concurrent Stream calls; each call owns its own stream
// reader and goroutine.
type EinoGenerator struct {
	// chatModel is the underlying streaming chat model.
	chatModel model.BaseChatModel
}

// New wraps an Eino chat model as a rag.Generator.
func New(chatModel model.BaseChatModel) (*EinoGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("generator: chat model must not be nil")
	}
	return &EinoGenerator{chatModel: chatModel}, nil
}

// Stream issues the generation request and returns immediately. Fragments
// are delivered to h.OnToken in emission order from a dedicated goroutine;
// exactly one of h.OnComplete or h.OnError fires after the last fragment.
// A backend that cannot be reached at all surfaces synchronously as
// rag.ErrModelUnavailable.
func (g *EinoGenerator) Stream(ctx context.Context, prompt string, h rag.StreamHandler) error {
	messages := []*schema.Message{
		schema.UserMessage(prompt),
	}

	sr, err := g.chatModel.Stream(ctx, messages)
	if err != nil {
		return fmt.Errorf("generator: %w: %v", rag.ErrModelUnavailable, err)
	}

	go func() {
		defer sr.Close()

		var full strings.Builder
		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				if h.OnComplete != nil {
					h.OnComplete(full.String())
				}
				return
			}
			if err != nil {
				if h.OnError != nil {
					h.OnError(fmt.Errorf("generator: stream receive: %w", err))
				}
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			full.WriteString(msg.Content)
			if h.OnToken != nil {
				h.OnToken(msg.Content)
			}
		}
	}()

	return nil
}
