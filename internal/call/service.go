package call

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messenger/infrastructure"
	"messenger/internal/chat"
	"messenger/internal/events"
)

// Emitter is the gateway capability call signaling depends on. Ringing uses
// the broadcast form so every device rings; later transitions use the
// deliver-first form because one acting device is enough to settle state.
type Emitter interface {
	EmitToUser(userID, event string, payload any)
	EmitToUserFirst(userID, event string, payload any)
}

// Conversations is the slice of the chat store calls need: membership-checked
// lookup only.
type Conversations interface {
	FindForUser(ctx context.Context, conversationID, userID string) (*chat.Conversation, error)
}

// Recorder appends a call summary line to the conversation history once a
// call settles.
type Recorder interface {
	RecordCallEvent(ctx context.Context, conversationID, senderID, content string) error
}

type InitiateCallPayload struct {
	ConversationID string   `json:"conversationId"`
	Type           CallType `json:"type"`
}

type CallActionPayload struct {
	CallID string `json:"callId"`
}

// CallView is the signaling payload pushed on every transition.
type CallView struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	InitiatorID    string     `json:"initiatorId"`
	Type           CallType   `json:"type"`
	Status         CallStatus `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// Service drives the call state machine:
// INITIATED -> ONGOING -> ENDED, with MISSED reachable from INITIATED via
// decline or ring timeout.
type Service struct {
	repo          Repository
	conversations Conversations
	recorder      Recorder
	emitter       Emitter
	ringTimeout   time.Duration
	log           *zap.Logger
}

func NewService(repo Repository, conversations Conversations, recorder Recorder, emitter Emitter, ringTimeout time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		conversations: conversations,
		recorder:      recorder,
		emitter:       emitter,
		ringTimeout:   ringTimeout,
		log:           log,
	}
}

// Initiate starts ringing the other participant of the conversation. The
// caller joins immediately; the callee gets a participant row that the ring
// timeout will flip to MISSED if nobody answers.
func (s *Service) Initiate(ctx context.Context, userID string, p InitiateCallPayload) (*CallView, error) {
	if p.Type == "" {
		p.Type = TypeAudio
	}
	if !p.Type.Valid() {
		return nil, infrastructure.ErrInvalidInput
	}

	conv, err := s.conversations.FindForUser(ctx, p.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.Status == chat.StatusBlocked {
		return nil, infrastructure.ErrBlocked
	}
	calleeID := conv.OtherParticipant(userID)

	call := &Call{
		ConversationID: conv.ID,
		InitiatorID:    userID,
		Type:           p.Type,
	}
	if err := s.repo.Create(ctx, call); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.repo.CreateParticipant(ctx, &CallParticipant{
		CallID: call.ID, UserID: userID, Status: ParticipantJoined, JoinedAt: &now,
	}); err != nil {
		return nil, err
	}
	if err := s.repo.CreateParticipant(ctx, &CallParticipant{
		CallID: call.ID, UserID: calleeID,
	}); err != nil {
		return nil, err
	}

	s.log.Info("initiated call",
		zap.String("call", call.ID),
		zap.String("conversation", conv.ID),
		zap.String("initiator", userID),
	)

	view := s.view(call)
	s.emitter.EmitToUser(calleeID, events.EventCallInitiated, view)

	time.AfterFunc(s.ringTimeout, func() {
		s.expireRing(call.ID)
	})

	return &view, nil
}

// Accept answers a ringing call. Only the callee can accept, and only while
// the call is still INITIATED.
func (s *Service) Accept(ctx context.Context, userID string, p CallActionPayload) (*CallView, error) {
	call, conv, err := s.findForParticipant(ctx, p.CallID, userID)
	if err != nil {
		return nil, err
	}
	if call.InitiatorID == userID || call.Status != StatusInitiated {
		return nil, infrastructure.ErrInvalidInput
	}

	now := time.Now()
	if err := s.repo.UpdateParticipant(ctx, call.ID, userID, ParticipantJoined, now); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, call.ID, StatusOngoing, nil); err != nil {
		return nil, err
	}
	call.Status = StatusOngoing
	s.log.Info("call answered", zap.String("call", call.ID), zap.String("by", userID))

	view := s.view(call)
	s.emitter.EmitToUserFirst(call.InitiatorID, events.EventCallOngoing, view)
	s.emitter.EmitToUserFirst(conv.OtherParticipant(call.InitiatorID), events.EventCallOngoing, view)
	return &view, nil
}

// Decline refuses a ringing call. The callee is marked MISSED; the call
// itself goes MISSED only while still INITIATED.
func (s *Service) Decline(ctx context.Context, userID string, p CallActionPayload) (*CallView, error) {
	call, _, err := s.findForParticipant(ctx, p.CallID, userID)
	if err != nil {
		return nil, err
	}
	if call.InitiatorID == userID {
		return nil, infrastructure.ErrInvalidInput
	}

	now := time.Now()
	if err := s.repo.UpdateParticipant(ctx, call.ID, userID, ParticipantMissed, now); err != nil {
		return nil, err
	}
	if call.Status != StatusInitiated {
		return s.viewPtr(call), nil
	}

	if err := s.repo.UpdateStatus(ctx, call.ID, StatusMissed, &now); err != nil {
		return nil, err
	}
	call.Status = StatusMissed
	call.EndedAt = &now
	s.log.Info("call declined", zap.String("call", call.ID), zap.String("by", userID))

	view := s.view(call)
	s.emitter.EmitToUserFirst(call.InitiatorID, events.EventCallMissed, view)
	s.recordSummary(ctx, call, "Missed call")
	return &view, nil
}

// End removes the acting user from the call. When the last joined
// participant leaves, the call settles to ENDED.
func (s *Service) End(ctx context.Context, userID string, p CallActionPayload) (*CallView, error) {
	call, conv, err := s.findForParticipant(ctx, p.CallID, userID)
	if err != nil {
		return nil, err
	}
	if call.Status == StatusEnded || call.Status == StatusMissed {
		return s.viewPtr(call), nil
	}

	now := time.Now()
	if err := s.repo.UpdateParticipant(ctx, call.ID, userID, ParticipantLeft, now); err != nil {
		return nil, err
	}

	parts, err := s.repo.Participants(ctx, call.ID)
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		if part.Status == ParticipantJoined {
			// Somebody is still on the line; the call survives.
			return s.viewPtr(call), nil
		}
	}

	// The initiator hanging up on a still-ringing call is a cancellation,
	// not a completed call.
	final := StatusEnded
	summary := "Call ended"
	if call.Status == StatusInitiated {
		final = StatusMissed
		summary = "Missed call"
	}
	if err := s.repo.UpdateStatus(ctx, call.ID, final, &now); err != nil {
		return nil, err
	}
	call.Status = final
	call.EndedAt = &now
	s.log.Info("call settled",
		zap.String("call", call.ID),
		zap.String("status", string(final)),
		zap.String("by", userID),
	)

	event := events.EventCallEnded
	if final == StatusMissed {
		event = events.EventCallMissed
	}
	view := s.view(call)
	s.emitter.EmitToUserFirst(call.InitiatorID, event, view)
	s.emitter.EmitToUserFirst(conv.OtherParticipant(call.InitiatorID), event, view)
	s.recordSummary(ctx, call, summary)
	return &view, nil
}

// expireRing fires after the ring timeout. It re-reads the call because an
// accept or decline may already have settled it.
func (s *Service) expireRing(callID string) {
	ctx := context.Background()
	call, err := s.repo.Find(ctx, callID)
	if err != nil {
		s.log.Warn("ring timeout lookup failed", zap.String("call", callID), zap.Error(err))
		return
	}
	if call.Status != StatusInitiated {
		return
	}

	now := time.Now()
	parts, err := s.repo.Participants(ctx, call.ID)
	if err != nil {
		s.log.Warn("ring timeout participant lookup failed", zap.String("call", callID), zap.Error(err))
		return
	}
	for _, part := range parts {
		if part.Status != ParticipantJoined {
			if err := s.repo.UpdateParticipant(ctx, call.ID, part.UserID, ParticipantMissed, now); err != nil {
				s.log.Warn("ring timeout participant update failed", zap.String("call", callID), zap.Error(err))
			}
		}
	}
	if err := s.repo.UpdateStatus(ctx, call.ID, StatusMissed, &now); err != nil {
		s.log.Warn("ring timeout status update failed", zap.String("call", callID), zap.Error(err))
		return
	}
	call.Status = StatusMissed
	call.EndedAt = &now
	s.log.Info("call rang out", zap.String("call", call.ID))

	view := s.view(call)
	for _, part := range parts {
		s.emitter.EmitToUser(part.UserID, events.EventCallMissed, view)
	}
	s.recordSummary(ctx, call, "Missed call")
}

// findForParticipant loads the call and its conversation, admitting only the
// two conversation members.
func (s *Service) findForParticipant(ctx context.Context, callID, userID string) (*Call, *chat.Conversation, error) {
	call, err := s.repo.Find(ctx, callID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.conversations.FindForUser(ctx, call.ConversationID, userID)
	if err != nil {
		return nil, nil, err
	}
	return call, conv, nil
}

func (s *Service) recordSummary(ctx context.Context, call *Call, content string) {
	if err := s.recorder.RecordCallEvent(ctx, call.ConversationID, call.InitiatorID, content); err != nil {
		s.log.Warn("failed to record call summary",
			zap.String("call", call.ID),
			zap.String("conversation", call.ConversationID),
			zap.Error(err),
		)
	}
}

func (s *Service) view(call *Call) CallView {
	return CallView{
		ID:             call.ID,
		ConversationID: call.ConversationID,
		InitiatorID:    call.InitiatorID,
		Type:           call.Type,
		Status:         call.Status,
		StartedAt:      call.StartedAt,
		EndedAt:        call.EndedAt,
	}
}

func (s *Service) viewPtr(call *Call) *CallView {
	v := s.view(call)
	return &v
}
