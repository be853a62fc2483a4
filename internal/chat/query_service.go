package chat

import (
	"context"

	"go.uber.org/zap"

	"messenger/internal/user"
)

const (
	defaultConversationLimit = 20
	defaultMessageLimit      = 50
	maxPageLimit             = 100
)

// QueryService is the read side: paginated conversation lists and single
// conversations with their message history, assembled with batch lookups.
type QueryService struct {
	repo      Repository
	directory user.Directory
	views     viewBuilder
	log       *zap.Logger
}

func NewQueryService(repo Repository, directory user.Directory, log *zap.Logger) *QueryService {
	return &QueryService{
		repo:      repo,
		directory: directory,
		views:     viewBuilder{repo: repo, directory: directory},
		log:       log,
	}
}

// LoadConversations returns the viewer's conversations ordered by most
// recent activity, each carrying the other participant's profile, the last
// message, and the unread count.
func (s *QueryService) LoadConversations(ctx context.Context, userID string, p LoadConversationsPayload) (*ConversationListResult, error) {
	page, limit := clampPage(p.Page, p.Limit, defaultConversationLimit)

	convs, total, err := s.repo.ListForUser(ctx, userID, (page-1)*limit, limit, p.Search)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(convs))
	lastMsgIDs := make([]string, 0, len(convs))
	convIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		otherIDs = append(otherIDs, c.OtherParticipant(userID))
		convIDs = append(convIDs, c.ID)
		if c.LastMessageID != nil {
			lastMsgIDs = append(lastMsgIDs, *c.LastMessageID)
		}
	}

	profiles, err := s.directory.Profiles(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	lastMsgs, err := s.repo.MessagesByIDs(ctx, lastMsgIDs)
	if err != nil {
		return nil, err
	}
	lastViews, err := s.views.messageViews(ctx, lastMsgs)
	if err != nil {
		return nil, err
	}
	lastByID := make(map[string]MessageView, len(lastViews))
	for _, v := range lastViews {
		lastByID[v.ID] = v
	}
	unread, err := s.repo.UnreadCounts(ctx, userID, convIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		view := ConversationView{
			ID:          c.ID,
			Participant: profiles[c.OtherParticipant(userID)],
			UnreadCount: unread[c.ID],
			Status:      c.Status,
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		}
		if c.LastMessageID != nil {
			if mv, ok := lastByID[*c.LastMessageID]; ok {
				view.LastMessage = &mv
			}
		}
		out = append(out, view)
	}

	s.log.Debug("loaded conversations",
		zap.String("user", userID),
		zap.Int("count", len(out)),
		zap.Int("page", page),
	)
	return &ConversationListResult{
		Conversations: out,
		Pagination:    paginate(page, limit, total),
	}, nil
}

// LoadSingleConversation returns one conversation plus a page of messages.
// Messages are fetched newest-first, then reversed so the slice reads
// oldest-first while still representing the most recent page overall.
func (s *QueryService) LoadSingleConversation(ctx context.Context, userID string, p LoadSingleConversationPayload) (*ConversationDetailResult, error) {
	conv, err := s.repo.FindForUser(ctx, p.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	page, limit := clampPage(p.Page, p.Limit, defaultMessageLimit)
	msgs, total, err := s.repo.PageMessages(ctx, conv.ID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	msgViews, err := s.views.messageViews(ctx, msgs)
	if err != nil {
		return nil, err
	}
	convView, err := s.views.conversationView(ctx, conv, userID)
	if err != nil {
		return nil, err
	}

	return &ConversationDetailResult{
		Conversation: *convView,
		Messages:     msgViews,
		Pagination:   paginate(page, limit, total),
	}, nil
}

func clampPage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
