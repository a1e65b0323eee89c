package contexts

import (
	"context"
)

// WithChatID stores the Telegram chat id in the context.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	container := getContainer(ctx)
	container.ChatID = &chatID

	return withContainer(ctx, container)
}

// GetChatID retrieves the Telegram chat id from the context.
func GetChatID(ctx context.Context) (int64, bool) {
	container := getContainer(ctx)
	if container.ChatID != nil {
		return *container.ChatID, true
	}

	return 0, false
}

// WithUserID stores the Telegram user id in the context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	container := getContainer(ctx)
	container.UserID = &userID

	return withContainer(ctx, container)
}

// GetUserID retrieves the Telegram user id from the context.
func GetUserID(ctx context.Context) (int64, bool) {
	container := getContainer(ctx)
	if container.UserID != nil {
		return *container.UserID, true
	}

	return 0, false
}
