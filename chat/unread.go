package chat

import "github.com/linesmerrill/advisory-chat-api/models"

// Unread returns how many active participants have not yet read msg.
// A missing snapshot, or a room with at most one active participant, is 0.
func Unread(msg models.ChatMessage, info *models.ReadInfo) int {
	if info == nil || info.TotalActive <= 1 {
		return 0
	}
	read := 0
	for _, p := range info.Participants {
		if p.LastReadAt != nil && !p.LastReadAt.Before(msg.CreatedAt) {
			read++
		}
	}
	if n := info.TotalActive - read; n > 0 {
		return n
	}
	return 0
}
