package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.Context(), Config{Dialect: "sqlite", DSN: "file:storetest?mode=memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestOpenUnsupportedDialect(t *testing.T) {
	_, err := Open(t.Context(), Config{Dialect: "oracle", DSN: "x"})
	require.Error(t, err)
	require.ErrorContains(t, err, "unsupported dialect")
}

func TestFolders(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	require.NoError(t, s.CreateFolder(ctx, "Регионы"))

	err := s.CreateFolder(ctx, "Регионы")
	require.ErrorIs(t, err, ErrDuplicateFolder)

	require.Error(t, s.CreateFolder(ctx, "  "))

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	require.Equal(t, "Регионы", folders[0].Name)
	require.Zero(t, folders[0].ChannelCount)
	require.False(t, folders[0].CreatedAt.IsZero())

	require.NoError(t, s.AddChannel(ctx, folders[0].ID, 1001, "politics", "Политика сегодня"))

	folders, err = s.Folders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, folders[0].ChannelCount)

	require.NoError(t, s.DeleteFolder(ctx, folders[0].ID))
	require.ErrorIs(t, s.DeleteFolder(ctx, folders[0].ID), ErrNotFound)
}

func TestChannels(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	require.NoError(t, s.CreateFolder(ctx, "Регионы"))

	folders, err := s.Folders(ctx)
	require.NoError(t, err)

	folderID := folders[0].ID

	require.NoError(t, s.AddChannel(ctx, folderID, 1001, "politics", "Политика сегодня"))

	// A channel cannot point at a missing folder.
	require.ErrorIs(t, s.AddChannel(ctx, folderID+100, 1002, "ghost", ""), ErrNotFound)

	channels, err := s.Channels(ctx, folderID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, folderID, channels[0].FolderID)
	require.Equal(t, int64(1001), channels[0].TelegramID)
	require.Equal(t, "politics", channels[0].Username)
	require.Equal(t, "Политика сегодня", channels[0].Title)
	require.Nil(t, channels[0].ScannedAt)

	all, err := s.AllChannels(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Регионы", all[0].FolderName)

	require.NoError(t, s.RemoveChannel(ctx, channels[0].ID))
	require.ErrorIs(t, s.RemoveChannel(ctx, channels[0].ID), ErrNotFound)
}

func TestFolderAndChannelByID(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	require.NoError(t, s.CreateFolder(ctx, "Кампания 2026"))

	folders, err := s.Folders(ctx)
	require.NoError(t, err)

	folderID := folders[0].ID
	require.NoError(t, s.AddChannel(ctx, folderID, 2001, "region_news", "Новости региона"))

	folder, err := s.Folder(ctx, folderID)
	require.NoError(t, err)
	require.Equal(t, "Кампания 2026", folder.Name)
	require.Equal(t, 1, folder.ChannelCount)

	_, err = s.Folder(ctx, folderID+50)
	require.ErrorIs(t, err, ErrNotFound)

	channels, err := s.Channels(ctx, folderID)
	require.NoError(t, err)

	channel, err := s.Channel(ctx, channels[0].ID)
	require.NoError(t, err)
	require.Equal(t, "region_news", channel.Username)
	require.Equal(t, "Новости региона", channel.Title)
	require.Nil(t, channel.ScannedAt)

	_, err = s.Channel(ctx, channels[0].ID+50)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveMessages(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	scanTime := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return scanTime }

	require.NoError(t, s.CreateFolder(ctx, "Регионы"))

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddChannel(ctx, folders[0].ID, 1001, "politics", "Политика сегодня"))

	channels, err := s.Channels(ctx, folders[0].ID)
	require.NoError(t, err)

	channelID := channels[0].ID

	older := scanTime.Add(-2 * time.Hour)
	newer := scanTime.Add(-time.Hour)

	require.NoError(t, s.SaveMessages(ctx, channelID, []Message{
		{MessageID: 10, Text: "Старый пост", PostedAt: older},
		{MessageID: 11, Text: "Новый пост", PostedAt: newer},
	}))

	messages, err := s.Messages(ctx, channelID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, int64(11), messages[0].MessageID)
	require.Equal(t, "Новый пост", messages[0].Text)
	require.WithinDuration(t, newer, messages[0].PostedAt, time.Second)

	// Rescanning the same window updates in place instead of duplicating.
	require.NoError(t, s.SaveMessages(ctx, channelID, []Message{
		{MessageID: 11, Text: "Новый пост (отредактирован)", PostedAt: newer},
	}))

	messages, err = s.Messages(ctx, channelID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "Новый пост (отредактирован)", messages[0].Text)

	messages, err = s.Messages(ctx, channelID, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	channels, err = s.Channels(ctx, folders[0].ID)
	require.NoError(t, err)
	require.NotNil(t, channels[0].ScannedAt)
	require.WithinDuration(t, scanTime, *channels[0].ScannedAt, time.Second)
}

func TestTouchScanned(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	require.NoError(t, s.CreateFolder(ctx, "Регионы"))

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddChannel(ctx, folders[0].ID, 1001, "politics", ""))

	channels, err := s.Channels(ctx, folders[0].ID)
	require.NoError(t, err)

	require.NoError(t, s.TouchScanned(ctx, channels[0].ID))
	require.ErrorIs(t, s.TouchScanned(ctx, channels[0].ID+100), ErrNotFound)

	channels, err = s.Channels(ctx, folders[0].ID)
	require.NoError(t, err)
	require.NotNil(t, channels[0].ScannedAt)
}

func TestDeleteFolderCascades(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	require.NoError(t, s.CreateFolder(ctx, "Регионы"))

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddChannel(ctx, folders[0].ID, 1001, "politics", ""))

	channels, err := s.Channels(ctx, folders[0].ID)
	require.NoError(t, err)

	channelID := channels[0].ID

	require.NoError(t, s.SaveMessages(ctx, channelID, []Message{
		{MessageID: 1, Text: "Пост", PostedAt: time.Now()},
	}))

	require.NoError(t, s.DeleteFolder(ctx, folders[0].ID))

	all, err := s.AllChannels(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	messages, err := s.Messages(ctx, channelID, 0)
	require.NoError(t, err)
	require.Empty(t, messages)
}
