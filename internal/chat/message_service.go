package chat

import (
	"context"

	"go.uber.org/zap"

	"messenger/infrastructure"
	"messenger/internal/events"
	"messenger/internal/user"
)

// MessageService is the send pipeline: persist, record delivery status,
// bump the conversation pointer, fan out to the recipient.
type MessageService struct {
	repo      Repository
	directory user.Directory
	emitter   Emitter
	views     viewBuilder
	log       *zap.Logger
}

func NewMessageService(repo Repository, directory user.Directory, emitter Emitter, log *zap.Logger) *MessageService {
	return &MessageService{
		repo:      repo,
		directory: directory,
		emitter:   emitter,
		views:     viewBuilder{repo: repo, directory: directory},
		log:       log,
	}
}

// Send persists the message and notifies the recipient's live connections.
// The message write strictly precedes the fan-out; a failed delivery-status
// or pointer write degrades bookkeeping but never retracts the message, and
// the pointer heals itself on the next send. Sending into a BLOCKED
// conversation is rejected.
func (s *MessageService) Send(ctx context.Context, senderID string, p SendMessagePayload) (*MessageView, error) {
	if p.ConversationID == "" {
		return nil, infrastructure.ErrInvalidInput
	}
	if p.Content == "" && p.FileID == "" {
		return nil, infrastructure.ErrInvalidInput
	}
	if p.Type == "" {
		p.Type = TypeText
	}
	if !p.Type.Valid() {
		return nil, infrastructure.ErrInvalidInput
	}

	conv, err := s.repo.FindForUser(ctx, p.ConversationID, senderID)
	if err != nil {
		return nil, err
	}
	if conv.Status == StatusBlocked {
		return nil, infrastructure.ErrBlocked
	}

	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Type:           p.Type,
		Content:        p.Content,
		FileID:         p.FileID,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	recipientID := conv.OtherParticipant(senderID)
	if err := s.repo.CreateMessageStatus(ctx, &MessageStatus{
		MessageID:      msg.ID,
		UserID:         recipientID,
		ConversationID: conv.ID,
	}); err != nil {
		s.log.Warn("failed to record delivery status", zap.String("message", msg.ID), zap.Error(err))
	}
	if err := s.repo.SetLastMessage(ctx, conv.ID, msg.ID); err != nil {
		s.log.Warn("failed to update last-message pointer", zap.String("conversation", conv.ID), zap.Error(err))
	}

	views, err := s.views.messageViews(ctx, []Message{*msg})
	if err != nil {
		return nil, err
	}
	view := views[0]

	s.emitter.EmitToUser(recipientID, events.EventNewMessage, view)
	s.log.Debug("sent message",
		zap.String("message", msg.ID),
		zap.String("conversation", conv.ID),
		zap.String("recipient", recipientID),
	)
	return &view, nil
}

// MarkRead flips the viewer's pending delivery records for the conversation
// to READ and reports how many changed.
func (s *MessageService) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	if _, err := s.repo.FindForUser(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, userID, conversationID)
}

// RecordCallEvent appends a CALL_EVENT message to the conversation history.
// Call transitions are announced through their own events, so there is no
// fan-out and no delivery record here.
func (s *MessageService) RecordCallEvent(ctx context.Context, conversationID, senderID, content string) error {
	msg := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           TypeCallEvent,
		Content:        content,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return err
	}
	if err := s.repo.SetLastMessage(ctx, conversationID, msg.ID); err != nil {
		s.log.Warn("failed to update last-message pointer", zap.String("conversation", conversationID), zap.Error(err))
	}
	return nil
}
