package telegram

import (
	"context"
	"fmt"
	"os"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Sender adapts the Telegram bot client to the pipeline's messenger
// surface. It is safe for concurrent use; telego clients are.
type Sender struct {
	bot *telego.Bot
}

// NewSender wraps an existing bot client.
func NewSender(bot *telego.Bot) *Sender {
	return &Sender{bot: bot}
}

// SendNotice sends a status message replying to the originating message
// and returns its message ID.
func (s *Sender) SendNotice(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	params := tu.Message(tu.ID(chatID), text)
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}
	sent, err := s.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send notice: %w", err)
	}
	return sent.MessageID, nil
}

// EditNotice replaces the text of a previously sent notice.
func (s *Sender) EditNotice(ctx context.Context, chatID int64, noticeID int, text string) error {
	_, err := s.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: noticeID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("edit notice: %w", err)
	}
	return nil
}

// DeleteNotice removes a notice message.
func (s *Sender) DeleteNotice(ctx context.Context, chatID int64, noticeID int) error {
	if err := s.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: noticeID,
	}); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}

// SendVideo uploads the local file as a streamed video reply.
func (s *Sender) SendVideo(ctx context.Context, chatID int64, replyTo int, filePath, caption string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	params := &telego.SendVideoParams{
		ChatID:            tu.ID(chatID),
		Video:             tu.File(f),
		Caption:           caption,
		SupportsStreaming: true,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}

	if _, err := s.bot.SendVideo(ctx, params); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	return nil
}
