package http

import (
	"github.com/surewhynot/realtime/internal/domain"
	"github.com/surewhynot/realtime/internal/presence"
	"github.com/surewhynot/realtime/internal/puzzle"
	"github.com/surewhynot/realtime/internal/service"
)

type AnonymousRequest struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
}

type AnonymousResponse struct {
	OK    bool            `json:"ok"`
	User  domain.Identity `json:"user"`
	Token string          `json:"token,omitempty"`
}

type DisplayNameRequest struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
}

type ProfileResponse struct {
	OK           bool   `json:"ok"`
	UUID         string `json:"uuid"`
	DisplayName  string `json:"displayName"`
	Room         string `json:"room"`
	XPTotal      int    `json:"xpTotal"`
	DailyXP      int    `json:"dailyXp"`
	LastLoginDay string `json:"lastLoginDay"`
}

type HeartbeatRequest struct {
	UUID string `json:"uuid"`
	Room string `json:"room"`
}

type HeartbeatResponse struct {
	OK           bool   `json:"ok"`
	LastSeenAt   int64  `json:"lastSeenAt"`
	Room         string `json:"room"`
	XPTotal      int    `json:"xpTotal"`
	DailyXP      int    `json:"dailyXp"`
	LastLoginDay string `json:"lastLoginDay"`
}

type RoomRequest struct {
	UUID string `json:"uuid"`
	Room string `json:"room"`
}

type RoomResponse struct {
	OK   bool   `json:"ok"`
	Room string `json:"room"`
}

type SendRequest struct {
	UUID    string `json:"uuid"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

type SendResponse struct {
	OK      bool            `json:"ok"`
	Message domain.Message  `json:"message"`
	User    domain.Identity `json:"user"`
}

type HistoryResponse struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
	Next     string           `json:"next,omitempty"`
}

type PresenceUser struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
	LastSeenAt  int64  `json:"lastSeenAt"`
	XPTotal     int    `json:"xpTotal"`
	DailyXP     int    `json:"dailyXp"`
}

type PresenceResponse struct {
	Room        string         `json:"room"`
	OnlineCount int            `json:"onlineCount"`
	Users       []PresenceUser `json:"users"`
}

type DailyRow struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	DailyXP     int    `json:"dailyXp"`
}

type GlobalRow struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	XPTotal     int    `json:"xpTotal"`
}

type DailyLeaderboardResponse struct {
	OK   bool       `json:"ok"`
	Day  string     `json:"day"`
	Rows []DailyRow `json:"rows"`
}

type GlobalLeaderboardResponse struct {
	OK   bool        `json:"ok"`
	Rows []GlobalRow `json:"rows"`
}

type PuzzleResponse struct {
	OK     bool          `json:"ok"`
	Puzzle puzzle.Puzzle `json:"puzzle"`
}

type PuzzleStateResponse struct {
	OK     bool   `json:"ok"`
	Day    string `json:"day"`
	Solved bool   `json:"solved"`
}

type SubmitRequest struct {
	UUID  string `json:"uuid"`
	Guess string `json:"guess"`
}

type SubmitResponse struct {
	OK bool `json:"ok"`
	service.SubmitResult
}

type HealthResponse struct {
	OK bool `json:"ok"`
	service.Stats
	RaceRooms int `json:"raceRooms"`
}

func toPresenceUsers(ids []domain.Identity) []PresenceUser {
	out := make([]PresenceUser, 0, len(ids))
	for _, u := range ids {
		out = append(out, PresenceUser{
			UUID:        u.ID,
			DisplayName: u.DisplayName,
			Room:        u.Room,
			LastSeenAt:  u.LastSeenAt.UnixMilli(),
			XPTotal:     u.XPTotal,
			DailyXP:     u.DailyXP,
		})
	}
	return out
}

func toDailyRows(entries []presence.Entry) []DailyRow {
	out := make([]DailyRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, DailyRow{UUID: e.ID, DisplayName: e.DisplayName, DailyXP: e.XP})
	}
	return out
}

func toGlobalRows(entries []presence.Entry) []GlobalRow {
	out := make([]GlobalRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, GlobalRow{UUID: e.ID, DisplayName: e.DisplayName, XPTotal: e.XP})
	}
	return out
}
