package service

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage/memory"
	"tempmail/inbox/internal/storage/storagetest"
)

type inboxFixture struct {
	store *memory.Store
	svc   *InboxService
	clock *fakeClock
	alice *domain.Address
	bob   *domain.Address
}

func newInboxFixture(t *testing.T) *inboxFixture {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewInboxService(store, zap.NewNop())
	svc.SetClock(clock.Now)

	alice := storagetest.NewAddress("alice@tempmail.local", clock.Now(), 24*time.Hour)
	bob := storagetest.NewAddress("bob@tempmail.local", clock.Now(), 24*time.Hour)
	require.NoError(t, store.CreateAddress(context.Background(), alice))
	require.NoError(t, store.CreateAddress(context.Background(), bob))

	return &inboxFixture{store: store, svc: svc, clock: clock, alice: alice, bob: bob}
}

func (f *inboxFixture) deliver(t *testing.T, subject string, offset time.Duration, attachments []domain.Attachment, to ...*domain.Address) *domain.Email {
	t.Helper()
	email := storagetest.NewEmail(subject, "sender@example.com", f.clock.Now().Add(offset))
	return storagetest.Deliver(t, f.store, email, attachments, to...)
}

func TestInboxService_ListPagination(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.deliver(t, "message", time.Duration(i)*time.Minute, nil, f.alice)
	}

	page, err := f.svc.List(ctx, f.alice, ListInput{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Emails, 2)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)
	assert.True(t, page.Emails[0].ReceivedAt.After(page.Emails[1].ReceivedAt))

	page, err = f.svc.List(ctx, f.alice, ListInput{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page.Emails, 1)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)

	// 超出范围返回空列表
	page, err = f.svc.List(ctx, f.alice, ListInput{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Emails)
	assert.NotNil(t, page.Emails)

	_, err = f.svc.List(ctx, f.alice, ListInput{Page: 0, PerPage: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidPage)
	_, err = f.svc.List(ctx, f.alice, ListInput{Page: 1, PerPage: 101})
	assert.ErrorIs(t, err, domain.ErrInvalidPerPage)

	// 偏移量溢出时按超出范围处理
	page, err = f.svc.List(ctx, f.alice, ListInput{Page: math.MaxInt/10 + 2, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Emails)
	assert.Equal(t, 5, page.Total)
	assert.False(t, page.HasNext)

	page, err = f.svc.List(ctx, f.bob, ListInput{Page: 1, PerPage: 50})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestInboxService_SearchAndUnread(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	invoice := f.deliver(t, "Your Invoice", 0, nil, f.alice)
	f.deliver(t, "Newsletter", time.Minute, nil, f.alice)

	page, err := f.svc.List(ctx, f.alice, ListInput{Page: 1, PerPage: 10, Search: "  invoice  "})
	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, invoice.ID, page.Emails[0].ID)

	_, err = f.svc.Get(ctx, f.alice, invoice.ID, true)
	require.NoError(t, err)

	page, err = f.svc.List(ctx, f.alice, ListInput{Page: 1, PerPage: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, "Newsletter", *page.Emails[0].Subject)
}

func TestInboxService_Get(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	email := f.deliver(t, "shared", 0, nil, f.alice, f.bob)

	detail, err := f.svc.Get(ctx, f.alice, email.ID, false)
	require.NoError(t, err)
	assert.False(t, detail.IsRead)
	assert.Nil(t, detail.RawMessage)

	f.clock.Advance(time.Minute)
	detail, err = f.svc.Get(ctx, f.alice, strings.ToUpper(email.ID), true)
	require.NoError(t, err)
	assert.True(t, detail.IsRead)
	require.NotNil(t, detail.ReadAt)
	readAt := *detail.ReadAt
	assert.Equal(t, f.clock.Now(), readAt)

	// 再次读取不会改变 read_at
	f.clock.Advance(time.Minute)
	detail, err = f.svc.Get(ctx, f.alice, email.ID, true)
	require.NoError(t, err)
	assert.Equal(t, readAt, *detail.ReadAt)

	// 已读状态按地址独立
	detail, err = f.svc.Get(ctx, f.bob, email.ID, false)
	require.NoError(t, err)
	assert.False(t, detail.IsRead)

	_, err = f.svc.Get(ctx, f.alice, "not-a-uuid", true)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
	_, err = f.svc.Get(ctx, f.alice, "6f1c2a4e-0000-4000-8000-000000000000", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInboxService_Ownership(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	email := f.deliver(t, "private", 0, []domain.Attachment{
		{Filename: "a.txt", ContentType: "text/plain", SizeBytes: 1, Data: []byte("a")},
	}, f.alice)

	detail, err := f.svc.Get(ctx, f.alice, email.ID, false)
	require.NoError(t, err)
	attID := detail.Attachments[0].ID

	_, err = f.svc.Get(ctx, f.bob, email.ID, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Raw(ctx, f.bob, email.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Attachment(ctx, f.bob, email.ID, attID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.bob, email.ID), domain.ErrNotFound)

	// 越权读取不会改变已读状态
	detail, err = f.svc.Get(ctx, f.alice, email.ID, false)
	require.NoError(t, err)
	assert.False(t, detail.IsRead)
}

func TestInboxService_Delete(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	email := f.deliver(t, "shared", 0, nil, f.alice, f.bob)

	require.NoError(t, f.svc.Delete(ctx, f.alice, email.ID))

	_, err := f.svc.Get(ctx, f.bob, email.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.alice, email.ID), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.alice, "bad"), domain.ErrInvalidInput)
}

func TestInboxService_AttachmentAndRaw(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	email := f.deliver(t, "files", 0, []domain.Attachment{
		{Filename: "../../etc/passwd", ContentType: "text/plain", SizeBytes: 4, Data: []byte("root")},
	}, f.alice)

	detail, err := f.svc.Get(ctx, f.alice, email.ID, false)
	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)

	att, err := f.svc.Attachment(ctx, f.alice, email.ID, detail.Attachments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ".._.._etc_passwd", att.Filename)
	assert.Equal(t, []byte("root"), att.Data)

	_, err = f.svc.Attachment(ctx, f.alice, email.ID, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)

	raw, err := f.svc.Raw(ctx, f.alice, email.ID)
	require.NoError(t, err)
	assert.Equal(t, email.ID+".eml", raw.Filename)
	assert.Equal(t, email.RawMessage, raw.Data)
}

func TestInboxService_Info(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	f.deliver(t, "one", 0, nil, f.alice)
	f.deliver(t, "two", time.Minute, nil, f.alice)

	info, err := f.svc.Info(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, info.ID)
	assert.Equal(t, f.alice.Email, info.Email)
	assert.Equal(t, 2, info.EmailCount)
	assert.False(t, info.IsExpired)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeFilename("report.pdf"))
	assert.Equal(t, "a_b_c.txt", SanitizeFilename(`a/b\c.txt`))
}
