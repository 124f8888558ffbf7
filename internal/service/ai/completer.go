package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dvergara/docuchat/internal/config"
	"github.com/dvergara/docuchat/internal/model/chat"
)

// Service sends conversation windows to the configured completion backend.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
}

// NewService builds the completion backend from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &Service{chatModel: chatModel, cfg: cfg}, nil
}

// Complete sends the messages as-is and returns the first choice's content,
// trimmed. The round trip is bounded by the configured timeout.
func (s *Service) Complete(ctx context.Context, messages chat.Transcript) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	response, err := s.chatModel.Generate(ctx, toSchemaMessages(messages))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}

	log.Printf("[ai] completion for model=%s, messages=%d, reply length=%d",
		s.cfg.Model, len(messages), len(response.Content))
	return strings.TrimSpace(response.Content), nil
}

func toSchemaMessages(messages chat.Transcript) []*schema.Message {
	converted := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			converted = append(converted, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			converted = append(converted, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			converted = append(converted, schema.SystemMessage(msg.Content))
		}
	}
	return converted
}
