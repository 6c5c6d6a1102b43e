package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/history"
	"github.com/surewhynot/realtime/internal/hub"
	"github.com/surewhynot/realtime/internal/presence"
)

// PresenceUpdate is the payload of presence:update events.
type PresenceUpdate struct {
	Room        string `json:"room"`
	OnlineCount int    `json:"onlineCount"`
}

// ChatService is shared by the HTTP and socket transports.
type ChatService struct {
	tracker *presence.Tracker
	history *history.Store
	bc      *hub.Broadcaster
	log     *slog.Logger
}

func NewChatService(tracker *presence.Tracker, store *history.Store, bc *hub.Broadcaster, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{tracker: tracker, history: store, bc: bc, log: log}
}

func (s *ChatService) Tracker() *presence.Tracker { return s.tracker }

func (s *ChatService) Broadcaster() *hub.Broadcaster { return s.bc }

// Send validates text, awards message XP, records the message and fans it
// out to the room. An empty room means the author's current room.
func (s *ChatService) Send(ctx context.Context, authorID, room, text string) (domain.Message, domain.Identity, error) {
	text, err := domain.NormalizeText(text)
	if err != nil {
		return domain.Message{}, domain.Identity{}, err
	}

	author, _ := s.tracker.MarkSeen(authorID)
	if room == "" {
		room = author.Room
	}
	room = domain.SafeRoom(room)
	author = s.tracker.Award(author.ID, presence.MessageXP)

	msg := domain.Message{
		ID:          uuid.NewString(),
		Room:        room,
		AuthorID:    author.ID,
		DisplayName: author.DisplayName,
		Text:        text,
		CreatedAt:   s.tracker.Now(),
	}
	s.history.Append(msg)

	if _, err := s.bc.Broadcast("chat:new", msg, room); err != nil {
		s.log.ErrorContext(ctx, "chat broadcast failed", "room", room, "err", err)
	}
	return msg, author, nil
}

// History returns the last limit messages of room, most recent last.
func (s *ChatService) History(room string, limit int) []domain.Message {
	return s.history.Recent(domain.SafeRoom(room), limit)
}

// Online lists identities seen within the presence window in room.
func (s *ChatService) Online(room string) []domain.Identity {
	return s.tracker.OnlineUsers(domain.SafeRoom(room))
}

// AnnouncePresence broadcasts the room's online count to the room.
func (s *ChatService) AnnouncePresence(room string) {
	room = domain.SafeRoom(room)
	upd := PresenceUpdate{Room: room, OnlineCount: len(s.tracker.OnlineUsers(room))}
	if _, err := s.bc.Broadcast("presence:update", upd, room); err != nil {
		s.log.Error("presence broadcast failed", "room", room, "err", err)
	}
}

// Stats is the health summary.
type Stats struct {
	Users    int `json:"users"`
	Messages int `json:"messages"`
	Online   int `json:"online"`
	Sockets  int `json:"sockets"`
}

func (s *ChatService) Stats() Stats {
	return Stats{
		Users:    s.tracker.Count(),
		Messages: s.history.Total(),
		Online:   len(s.tracker.OnlineUsers("")),
		Sockets:  s.bc.Registry().Count(),
	}
}
