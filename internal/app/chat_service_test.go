package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinfinitygen/internal/apperr"
	"webinfinitygen/internal/events"
	"webinfinitygen/internal/model"
	"webinfinitygen/internal/repository"
)

func newChatService(t *testing.T) (*ChatService, *events.Hub) {
	t.Helper()
	hub := events.NewHub()
	return NewChatService(repository.NewChatRepository(openTestDB(t)), hub, nil), hub
}

func TestChatService_CreateAppendGet(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateChatInput{
		ChatID:       "c1",
		OwnerID:      "u1",
		Title:        "My chat",
		ChatType:     model.ChatTypeTextToText,
		FirstMessage: &MessageInput{Content: "hi"},
	})
	require.NoError(t, err)

	updated, err := svc.AppendMessage(ctx, "c1", MessageInput{Role: model.RoleChatAssistant, Content: "hello back"})
	require.NoError(t, err)
	assert.Len(t, updated.Messages, 2)

	session, err := svc.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, model.RoleChatUser, session.Messages[0].Role)
	assert.Equal(t, "hi", session.Messages[0].Content)
	assert.Equal(t, model.RoleChatAssistant, session.Messages[1].Role)
	assert.Equal(t, "hello back", session.Messages[1].Content)
	assert.Equal(t, model.KindText, session.Messages[1].Metadata.Kind())
}

func TestChatService_CreateValidation(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	cases := []CreateChatInput{
		{OwnerID: "u1", Title: "t"},
		{ChatID: "c1", Title: "t"},
		{ChatID: "c1", OwnerID: "u1", Title: "   "},
		{ChatID: "c1", OwnerID: "u1", Title: "t", ChatType: "video"},
		{ChatID: "c1", OwnerID: "u1", Title: "t", FirstMessage: &MessageInput{Content: ""}},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument, "%+v", in)
	}
}

func TestChatService_DuplicateCreateConflictsAndKeepsOriginal(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateChatInput{ChatID: "dup", OwnerID: "u1", Title: "Original", FirstMessage: &MessageInput{Content: "first"}})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateChatInput{ChatID: "dup", OwnerID: "u2", Title: "Imposter", ChatType: model.ChatTypeCreateGame, FirstMessage: &MessageInput{Content: "other"}})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	session, err := svc.GetByID(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "Original", session.Title)
	assert.Equal(t, "u1", session.OwnerID)
	assert.Equal(t, model.ChatTypeTextToText, session.ChatType)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "first", session.Messages[0].Content)
}

func TestChatService_AppendErrors(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, "missing", MessageInput{Role: model.RoleChatUser, Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Create(ctx, CreateChatInput{ChatID: "c1", OwnerID: "u1", Title: "t"})
	require.NoError(t, err)

	_, err = svc.AppendMessage(ctx, "c1", MessageInput{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.AppendMessage(ctx, "c1", MessageInput{Role: model.RoleChatUser, Content: " "})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.AppendMessage(ctx, "c1", MessageInput{
		Role:     model.RoleChatAssistant,
		Content:  "inline",
		Metadata: model.NewMetadata(model.ImageMetadata{URL: "data:image/png;base64,AAAA"}),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	session, err := svc.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, session.Messages)
}

func TestChatService_AssistantMayOmitContentForMedia(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "c1", OwnerID: "u1", Title: "t"})
	require.NoError(t, err)

	s, err := svc.AppendMessage(ctx, "c1", MessageInput{
		Role:     model.RoleChatAssistant,
		Metadata: model.NewMetadata(model.ImageMetadata{URL: "http://minio:9000/b/image_1.png", ObjectName: "image_1.png"}),
	})
	require.NoError(t, err)
	require.Len(t, s.Messages, 1)
	img, ok := s.Messages[0].Metadata.Get().(model.ImageMetadata)
	require.True(t, ok)
	assert.Equal(t, "image_1.png", img.ObjectName)
}

func TestChatService_AppendRefreshesUpdatedAt(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "c1", OwnerID: "u1", Title: "t"})
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(time.Hour) }
	s, err := svc.AppendMessage(ctx, "c1", MessageInput{Role: model.RoleChatUser, Content: "later"})
	require.NoError(t, err)
	assert.True(t, s.UpdatedAt.Equal(base.Add(time.Hour)), "updated_at %s", s.UpdatedAt)
	assert.True(t, s.CreatedAt.Equal(base))
}

func TestChatService_StaggeredAppendsKeepCallOrder(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "order", OwnerID: "u1", Title: "t"})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i) * 25 * time.Millisecond)
			_, err := svc.AppendMessage(ctx, "order", MessageInput{Role: model.RoleChatUser, Content: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := svc.GetByID(ctx, "order")
	require.NoError(t, err)
	require.Len(t, session.Messages, n)
	for i, m := range session.Messages {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
	}
}

func TestChatService_ConcurrentAppendsAreNotLost(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "busy", OwnerID: "u1", Title: "t"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AppendMessage(ctx, "busy", MessageInput{Role: model.RoleChatUser, Content: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := svc.GetByID(ctx, "busy")
	require.NoError(t, err)
	require.Len(t, session.Messages, n)

	seen := make(map[string]bool, n)
	for _, m := range session.Messages {
		seen[m.Content] = true
	}
	assert.Len(t, seen, n)
}

func TestChatService_ListByOwnerPaginates(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		_, err := svc.Create(ctx, CreateChatInput{ChatID: fmt.Sprintf("c%02d", i), OwnerID: "u1", Title: fmt.Sprintf("chat %d", i)})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "other", OwnerID: "u2", Title: "x"})
	require.NoError(t, err)

	page, err := svc.ListByOwner(ctx, ListChatsInput{OwnerID: "u1", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Equal(t, int64(15), page.Pagination.TotalItems)
	assert.Equal(t, 10, page.Pagination.PerPage)
	assert.Equal(t, "c14", page.Items[0].ChatID, "most recently updated first")

	second, err := svc.ListByOwner(ctx, ListChatsInput{OwnerID: "u1", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, second.Items, 5)
	assert.Equal(t, "c00", second.Items[4].ChatID)
}

func TestChatService_ListFiltersByChatType(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateChatInput{ChatID: "g1", OwnerID: "u1", Title: "game", ChatType: model.ChatTypeCreateGame})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateChatInput{ChatID: "t1", OwnerID: "u1", Title: "text"})
	require.NoError(t, err)

	page, err := svc.ListByOwner(ctx, ListChatsInput{OwnerID: "u1", ChatType: model.ChatTypeCreateGame})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "g1", page.Items[0].ChatID)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, defaultPageSize, page.Pagination.PerPage)
}

func TestChatService_RenameTitle(t *testing.T) {
	svc, hub := newChatService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "c1", OwnerID: "u1", Title: "old"})
	require.NoError(t, err)

	sub, cancel := hub.Subscribe(ctx, "u1")
	defer cancel()

	summary, err := svc.RenameTitle(ctx, "c1", "  new title ")
	require.NoError(t, err)
	assert.Equal(t, "new title", summary.Title)

	select {
	case ev := <-sub:
		assert.Equal(t, events.SessionRenamed, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("rename event not published")
	}

	_, err = svc.RenameTitle(ctx, "c1", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = svc.RenameTitle(ctx, "missing", "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestChatService_DeleteIsNotIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewChatService(repository.NewChatRepository(db), nil, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateChatInput{ChatID: "c1", OwnerID: "u1", Title: "t", FirstMessage: &MessageInput{Content: "hi"}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "c1"))
	assert.ErrorIs(t, svc.Delete(ctx, "c1"), apperr.ErrNotFound)

	_, err = svc.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var orphans int64
	require.NoError(t, db.Model(&model.ChatMessage{}).Count(&orphans).Error)
	assert.Zero(t, orphans)
}
