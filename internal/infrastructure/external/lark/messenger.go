package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/application/port"
)

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.Notifier by posting text messages to Lark
type Messenger struct {
	messages      messageCreator
	receiveID     string
	receiveIDType string
	logger        *zap.Logger
}

// NewMessenger creates a new Lark notifier
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	cfg := client.Config()
	return newMessenger(client.GetClient().Im.Message, cfg.ReceiveID, cfg.ReceiveIDType, logger)
}

func newMessenger(messages messageCreator, receiveID, receiveIDType string, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages:      messages,
		receiveID:     receiveID,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// Notify sends the notice as a text message
func (m *Messenger) Notify(ctx context.Context, notice port.Notice) error {
	if m.receiveID == "" {
		return errors.New("lark receive id is not configured")
	}

	text := notice.Title
	if notice.Body != "" {
		text += "\n" + notice.Body
	}
	if text == "" {
		return errors.New("notice has no content")
	}

	req, err := textMessageRequest(m.receiveIDType, m.receiveID, text)
	if err != nil {
		return err
	}

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("expense_id", notice.ExpenseID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("expense_id", notice.ExpenseID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("expense_id", notice.ExpenseID))
	return nil
}

// textContent encodes text as the content of a Lark "text" message
func textContent(text string) (string, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(content), nil
}

func textMessageRequest(receiveIDType, receiveID, text string) (*larkim.CreateMessageReq, error) {
	content, err := textContent(text)
	if err != nil {
		return nil, err
	}
	return larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType("text").
			Content(content).
			Build()).
		Build(), nil
}

var _ port.Notifier = (*Messenger)(nil)
