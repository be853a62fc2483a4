package chat

import (
	"context"
	"time"

	"messenger/internal/user"
)

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func paginate(page, limit int, total int64) Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// MessageView is a message enriched with its sender's public profile.
type MessageView struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Sender         user.Profile `json:"sender"`
	Type           MessageType  `json:"type"`
	Content        string       `json:"content,omitempty"`
	FileID         string       `json:"fileId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ConversationView is one conversation from a given viewer's perspective:
// the other participant's profile, the last message, and the unread count.
type ConversationView struct {
	ID          string             `json:"id"`
	Participant user.Profile       `json:"participant"`
	LastMessage *MessageView       `json:"lastMessage,omitempty"`
	UnreadCount int64              `json:"unreadCount"`
	Status      ConversationStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type ConversationListResult struct {
	Conversations []ConversationView `json:"conversations"`
	Pagination    Pagination         `json:"pagination"`
}

type ConversationDetailResult struct {
	Conversation ConversationView `json:"conversation"`
	Messages     []MessageView    `json:"messages"`
	Pagination   Pagination       `json:"pagination"`
}

// ConversationActionResult is the self-sufficient payload pushed to the
// other participant for block/unblock/delete; for delete the record is
// already gone, so this is all the peer will ever see.
type ConversationActionResult struct {
	ConversationID string `json:"conversationId"`
	Action         string `json:"action"`
}

// viewBuilder assembles read-side payloads with the minimum necessary
// lookups: batch profile fetches and batch last-message fetches, no
// per-row traversal.
type viewBuilder struct {
	repo      Repository
	directory user.Directory
}

func (b *viewBuilder) conversationView(ctx context.Context, conv *Conversation, viewerID string) (*ConversationView, error) {
	otherID := conv.OtherParticipant(viewerID)
	profile, err := b.directory.Profile(ctx, otherID)
	if err != nil {
		return nil, err
	}

	view := &ConversationView{
		ID:          conv.ID,
		Participant: *profile,
		Status:      conv.Status,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
	}

	if conv.LastMessageID != nil {
		msgs, err := b.repo.MessagesByIDs(ctx, []string{*conv.LastMessageID})
		if err != nil {
			return nil, err
		}
		if len(msgs) == 1 {
			mv, err := b.messageViews(ctx, msgs)
			if err != nil {
				return nil, err
			}
			view.LastMessage = &mv[0]
		}
	}
	return view, nil
}

func (b *viewBuilder) messageViews(ctx context.Context, msgs []Message) ([]MessageView, error) {
	senderIDs := make([]string, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles, err := b.directory.Profiles(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         profiles[m.SenderID],
			Type:           m.Type,
			Content:        m.Content,
			FileID:         m.FileID,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}
