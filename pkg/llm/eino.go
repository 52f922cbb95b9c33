package llm

import (
	"context"
	"fmt"

	"github.com/choraleia/thinkbot/pkg/models"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelProvider adapts an eino chat model to Provider.
type ChatModelProvider struct {
	model *models.LanguageModel
	chat  einoModel.BaseChatModel
}

func NewChatModelProvider(model *models.LanguageModel, chat einoModel.BaseChatModel) *ChatModelProvider {
	return &ChatModelProvider{model: model, chat: chat}
}

func (p *ChatModelProvider) ID() string { return p.model.Provider }

func (p *ChatModelProvider) CreateStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	msgs := BuildMessages(p.model, req)

	if !p.model.Streaming {
		msg, err := p.chat.Generate(ctx, msgs)
		if err != nil {
			return nil, fmt.Errorf("%s generate: %w", p.model.Provider, err)
		}
		if msg == nil || msg.Content == "" {
			return schema.StreamReaderFromArray([]string{}), nil
		}
		return schema.StreamReaderFromArray([]string{msg.Content}), nil
	}

	sr, err := p.chat.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", p.model.Provider, err)
	}
	return schema.StreamReaderWithConvert(sr, func(m *schema.Message) (string, error) {
		if m == nil || m.Content == "" {
			return "", schema.ErrNoValue
		}
		return m.Content, nil
	}), nil
}
