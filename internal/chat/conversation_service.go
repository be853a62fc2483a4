package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"messenger/infrastructure"
	"messenger/internal/events"
	"messenger/internal/user"
)

// Emitter is the gateway capability the conversation service depends on.
// The gateway's hub satisfies it; depending on this interface instead of the
// gateway package keeps the dependency one-way.
type Emitter interface {
	EmitToUser(userID, event string, payload any)
	EmitToUserFirst(userID, event string, payload any)
}

// ConversationService owns the conversation lifecycle: lazy creation,
// status transitions, and deletion.
type ConversationService struct {
	repo      Repository
	directory user.Directory
	emitter   Emitter
	views     viewBuilder
	log       *zap.Logger
}

func NewConversationService(repo Repository, directory user.Directory, emitter Emitter, log *zap.Logger) *ConversationService {
	return &ConversationService{
		repo:      repo,
		directory: directory,
		emitter:   emitter,
		views:     viewBuilder{repo: repo, directory: directory},
		log:       log,
	}
}

// InitiateOrGet returns the conversation for the unordered pair, creating it
// on first contact. Repeated calls in either participant order return the
// same conversation. The peer learns of a newly created thread via fan-out;
// the initiator gets the result as the return value only.
func (s *ConversationService) InitiateOrGet(ctx context.Context, initiatorID, targetID string) (*ConversationView, error) {
	if targetID == "" {
		return nil, infrastructure.ErrInvalidInput
	}
	if initiatorID == targetID {
		return nil, infrastructure.ErrSelfTarget
	}

	conv, err := s.repo.FindByPair(ctx, initiatorID, targetID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return s.views.conversationView(ctx, conv, initiatorID)
	}

	exists, err := s.directory.Exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, infrastructure.ErrUserNotFound
	}

	conv = &Conversation{InitiatorID: initiatorID, ReceiverID: targetID}
	err = s.repo.Create(ctx, conv)
	if errors.Is(err, infrastructure.ErrDuplicate) {
		// Both sides initiated at once; the loser of the race adopts the
		// winner's record.
		conv, err = s.repo.FindByPair(ctx, initiatorID, targetID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, fmt.Errorf("conversation vanished after duplicate create: %w", infrastructure.ErrInternalServer)
		}
		return s.views.conversationView(ctx, conv, initiatorID)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("created conversation",
		zap.String("conversation", conv.ID),
		zap.String("initiator", initiatorID),
		zap.String("target", targetID),
	)

	if peerView, err := s.views.conversationView(ctx, conv, targetID); err == nil {
		s.emitter.EmitToUser(targetID, events.EventConversationUpdate, peerView)
	} else {
		s.log.Warn("skipped peer notification for new conversation", zap.Error(err))
	}

	return s.views.conversationView(ctx, conv, initiatorID)
}

// Archive moves the conversation to ARCHIVED for the acting user and mirrors
// the change to their other devices.
func (s *ConversationService) Archive(ctx context.Context, userID, conversationID string) (*ConversationView, error) {
	return s.updateStatus(ctx, userID, conversationID, StatusArchived, "")
}

// Block transitions to BLOCKED and tells the other participant.
func (s *ConversationService) Block(ctx context.Context, userID, conversationID string) (*ConversationView, error) {
	return s.updateStatus(ctx, userID, conversationID, StatusBlocked, "blocked")
}

// Unblock transitions back to ACTIVE and tells the other participant.
func (s *ConversationService) Unblock(ctx context.Context, userID, conversationID string) (*ConversationView, error) {
	return s.updateStatus(ctx, userID, conversationID, StatusActive, "unblocked")
}

func (s *ConversationService) updateStatus(ctx context.Context, userID, conversationID string, status ConversationStatus, peerAction string) (*ConversationView, error) {
	conv, err := s.repo.FindForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, conv.ID, status)
	if err != nil {
		return nil, err
	}
	s.log.Info("updated conversation status",
		zap.String("conversation", conv.ID),
		zap.String("status", string(status)),
	)

	view, err := s.views.conversationView(ctx, updated, userID)
	if err != nil {
		return nil, err
	}

	// The acting user's other devices mirror the change; the peer is only
	// told about block state, never about archiving.
	s.emitter.EmitToUser(userID, events.EventConversationUpdate, view)
	if peerAction != "" {
		s.emitter.EmitToUser(updated.OtherParticipant(userID), events.EventConversationUpdate, ConversationActionResult{
			ConversationID: updated.ID,
			Action:         peerAction,
		})
	}
	return view, nil
}

// Delete hard-deletes the conversation for both participants. The payload
// pushed to the peer is self-sufficient because the record no longer exists.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) (*ConversationActionResult, error) {
	conv, err := s.repo.FindForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	otherID := conv.OtherParticipant(userID)

	if err := s.repo.Delete(ctx, conv.ID); err != nil {
		return nil, err
	}
	s.log.Info("deleted conversation", zap.String("conversation", conv.ID), zap.String("by", userID))

	result := ConversationActionResult{ConversationID: conv.ID, Action: "deleted"}
	s.emitter.EmitToUser(otherID, events.EventConversationUpdate, result)
	return &result, nil
}
