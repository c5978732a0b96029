package chat

import (
	"sort"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// Less orders messages by createdAt ascending, ties broken by id
func Less(a, b models.ChatMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMessages sorts msgs in place into display order
func SortMessages(msgs []models.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return Less(msgs[i], msgs[j])
	})
}
