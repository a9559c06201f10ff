// Package storagetest 提供 storage.Store 的通用行为测试，内存实现与 SQL 实现共用。
package storagetest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// Factory 为每个子测试创建一个全新的存储实例
type Factory func(t *testing.T) storage.Store

// Base 测试使用的固定时间基准
var Base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// NewAddress 构造一个从 created 开始、有效期为 lifetime 的地址
func NewAddress(email string, created time.Time, lifetime time.Duration) *domain.Address {
	return &domain.Address{
		ID:        uuid.NewString(),
		Email:     email,
		Token:     uuid.NewString() + uuid.NewString(),
		CreatedAt: created,
		ExpiresAt: created.Add(lifetime),
	}
}

// NewEmail 构造一封测试邮件
func NewEmail(subject, from string, received time.Time) *domain.Email {
	raw := []byte("Subject: " + subject + "\r\n\r\nhello")
	return &domain.Email{
		ID:          uuid.NewString(),
		MessageID:   "<" + uuid.NewString() + "@example.com>",
		Subject:     &subject,
		FromAddress: from,
		ToAddress:   "someone@tempmail.local",
		RawHeaders:  "Subject: " + subject,
		RawMessage:  raw,
		SizeBytes:   int64(len(raw)),
		DKIMValid:   domain.DKIMPass,
		SPFResult:   domain.SPFPass,
		ReceivedAt:  received,
	}
}

// Deliver 把邮件投递到给定地址，返回写入的邮件
func Deliver(t *testing.T, s storage.Store, email *domain.Email, attachments []domain.Attachment, addrs ...*domain.Address) *domain.Email {
	t.Helper()
	recipients := make([]domain.Recipient, 0, len(addrs))
	for _, a := range addrs {
		recipients = append(recipients, domain.Recipient{
			ID:        uuid.NewString(),
			EmailID:   email.ID,
			AddressID: a.ID,
			CreatedAt: email.ReceivedAt,
		})
	}
	for i := range attachments {
		if attachments[i].ID == "" {
			attachments[i].ID = uuid.NewString()
		}
		attachments[i].EmailID = email.ID
		if attachments[i].CreatedAt.IsZero() {
			attachments[i].CreatedAt = email.ReceivedAt
		}
	}
	email.HasAttachments = len(attachments) > 0
	require.NoError(t, s.SaveEmail(context.Background(), email, recipients, attachments))
	return email
}

// Run 执行全部通用用例
func Run(t *testing.T, factory Factory) {
	t.Run("Addresses", func(t *testing.T) { testAddresses(t, factory(t)) })
	t.Run("Reclaim", func(t *testing.T) { testReclaim(t, factory(t)) })
	t.Run("DeleteExpired", func(t *testing.T) { testDeleteExpired(t, factory(t)) })
	t.Run("ListEmails", func(t *testing.T) { testListEmails(t, factory(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, factory(t)) })
	t.Run("GetEmail", func(t *testing.T) { testGetEmail(t, factory(t)) })
	t.Run("Ownership", func(t *testing.T) { testOwnership(t, factory(t)) })
	t.Run("DeleteEmail", func(t *testing.T) { testDeleteEmail(t, factory(t)) })
	t.Run("Attachments", func(t *testing.T) { testAttachments(t, factory(t)) })
	t.Run("EmailLimit", func(t *testing.T) { testEmailLimit(t, factory(t)) })
}

func testAddresses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	addr := NewAddress("alice@tempmail.local", Base, time.Hour)
	require.NoError(t, s.CreateAddress(ctx, addr))

	exists, err := s.AddressExists(ctx, "alice@tempmail.local")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.AddressExists(ctx, "bob@tempmail.local")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := s.GetAddressByToken(ctx, addr.Token)
	require.NoError(t, err)
	assert.Equal(t, addr.ID, got.ID)
	assert.Equal(t, addr.Email, got.Email)
	assert.True(t, got.ExpiresAt.Equal(addr.ExpiresAt))

	got, err = s.GetAddressByEmail(ctx, addr.Email)
	require.NoError(t, err)
	assert.Equal(t, addr.Token, got.Token)

	_, err = s.GetAddressByToken(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetAddressByEmail(ctx, "missing@tempmail.local")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	dupEmail := NewAddress("alice@tempmail.local", Base, time.Hour)
	assert.ErrorIs(t, s.CreateAddress(ctx, dupEmail), storage.ErrDuplicateAddress)

	dupToken := NewAddress("carol@tempmail.local", Base, time.Hour)
	dupToken.Token = addr.Token
	assert.ErrorIs(t, s.CreateAddress(ctx, dupToken), storage.ErrDuplicateAddress)
}

func testReclaim(t *testing.T, s storage.Store) {
	ctx := context.Background()

	t.Run("不存在时直接创建", func(t *testing.T) {
		addr := NewAddress("fresh@tempmail.local", Base, time.Hour)
		require.NoError(t, s.ReclaimAddress(ctx, addr, Base))

		got, err := s.GetAddressByEmail(ctx, addr.Email)
		require.NoError(t, err)
		assert.Equal(t, addr.ID, got.ID)
	})

	t.Run("仍有效时冲突", func(t *testing.T) {
		active := NewAddress("active@tempmail.local", Base, time.Hour)
		require.NoError(t, s.CreateAddress(ctx, active))

		err := s.ReclaimAddress(ctx, NewAddress(active.Email, Base, time.Hour), Base.Add(30*time.Minute))
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := s.GetAddressByEmail(ctx, active.Email)
		require.NoError(t, err)
		assert.Equal(t, active.ID, got.ID)
	})

	t.Run("已过期时回收", func(t *testing.T) {
		old := NewAddress("reuse@tempmail.local", Base, time.Hour)
		require.NoError(t, s.CreateAddress(ctx, old))
		email := Deliver(t, s, NewEmail("old mail", "x@example.com", Base.Add(time.Minute)), nil, old)

		now := Base.Add(2 * time.Hour)
		fresh := NewAddress(old.Email, now, time.Hour)
		require.NoError(t, s.ReclaimAddress(ctx, fresh, now))

		_, err := s.GetAddressByToken(ctx, old.Token)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		got, err := s.GetAddressByEmail(ctx, old.Email)
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, got.ID)

		// 新地址看不到旧地址的邮件
		emails, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: fresh.ID, Page: 1, PerPage: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, emails)

		// 邮件本身成为孤儿，由孤儿清理删除
		purged, err := s.DeleteOrphanedEmails(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		_, err = s.GetRawMessage(ctx, old.ID, email.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func testDeleteExpired(t *testing.T, s storage.Store) {
	ctx := context.Background()
	expired := NewAddress("expired@tempmail.local", Base, time.Hour)
	boundary := NewAddress("boundary@tempmail.local", Base, 2*time.Hour)
	active := NewAddress("active@tempmail.local", Base, 3*time.Hour)
	for _, a := range []*domain.Address{expired, boundary, active} {
		require.NoError(t, s.CreateAddress(ctx, a))
	}

	shared := Deliver(t, s, NewEmail("shared", "x@example.com", Base.Add(time.Minute)), nil, expired, active)
	lonely := Deliver(t, s, NewEmail("lonely", "x@example.com", Base.Add(2*time.Minute)), nil, expired)

	// boundary 的 expires_at 恰好等于 now，同样被删除
	deleted, err := s.DeleteExpiredAddresses(ctx, Base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.GetAddressByEmail(ctx, expired.Email)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetAddressByEmail(ctx, boundary.Email)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetAddressByEmail(ctx, active.Email)
	require.NoError(t, err)

	// 共享邮件仍对有效地址可见
	_, err = s.GetEmail(ctx, active.ID, shared.ID, false, Base)
	require.NoError(t, err)

	purged, err := s.DeleteOrphanedEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = s.GetEmail(ctx, active.ID, shared.ID, false, Base)
	require.NoError(t, err)
	_, err = s.GetRawMessage(ctx, expired.ID, lonely.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err = s.DeleteExpiredAddresses(ctx, Base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func testListEmails(t *testing.T, s storage.Store) {
	ctx := context.Background()
	addr := NewAddress("list@tempmail.local", Base, 24*time.Hour)
	other := NewAddress("other@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, addr))
	require.NoError(t, s.CreateAddress(ctx, other))

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		e := Deliver(t, s, NewEmail("mail", "x@example.com", Base.Add(time.Duration(i)*time.Minute)), nil, addr)
		ids = append(ids, e.ID)
	}
	Deliver(t, s, NewEmail("foreign", "x@example.com", Base), nil, other)

	page1, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, ids[4], page1[0].ID)
	assert.Equal(t, ids[3], page1[1].ID)

	page3, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[0], page3[0].ID)

	beyond, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 10, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, beyond)

	// 偏移量溢出的页码同样返回空列表
	huge, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: math.MaxInt/10 + 2, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, huge)

	_, err = s.GetEmail(ctx, addr.ID, ids[1], true, Base.Add(time.Hour))
	require.NoError(t, err)

	unread, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 10, UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	for _, e := range unread {
		assert.NotEqual(t, ids[1], e.ID)
		assert.False(t, e.IsRead)
	}

	all, _, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 10})
	require.NoError(t, err)
	for _, e := range all {
		assert.Equal(t, e.ID == ids[1], e.IsRead)
	}
}

func testSearch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	addr := NewAddress("search@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, addr))

	invoice := NewEmail("Your INVOICE is ready", "billing@shop.example", Base)
	percent := NewEmail("100% off", "promo@shop.example", Base.Add(time.Minute))
	plain := NewEmail("hello", "friend@example.com", Base.Add(2*time.Minute))
	body := "the secret code is a_b"
	plain.BodyPlain = &body
	noSubject := NewEmail("", "nobody@example.com", Base.Add(3*time.Minute))
	noSubject.Subject = nil
	accented := NewEmail("ÉTÉ Résumé", "ete@example.org", Base.Add(4*time.Minute))
	for _, e := range []*domain.Email{invoice, percent, plain, noSubject, accented} {
		Deliver(t, s, e, nil, addr)
	}

	cases := []struct {
		name   string
		search string
		want   []string
	}{
		{"主题大小写不敏感", "invoice", []string{invoice.ID}},
		{"发件人", "SHOP.EXAMPLE", []string{percent.ID, invoice.ID}},
		{"正文", "secret", []string{plain.ID}},
		{"百分号按字面匹配", "0%", []string{percent.ID}},
		{"下划线按字面匹配", "a_b", []string{plain.ID}},
		{"通配符不展开", "a%b", nil},
		{"非 ASCII 大小写不敏感", "été", []string{accented.ID}},
		{"非 ASCII 关键字大写", "RÉSUMÉ", []string{accented.ID}},
		{"无匹配", "nothing", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			emails, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 10, Search: tc.search})
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), total)
			got := make([]string, 0, len(emails))
			for _, e := range emails {
				got = append(got, e.ID)
			}
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func testGetEmail(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := NewAddress("a@tempmail.local", Base, 24*time.Hour)
	b := NewAddress("b@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, a))
	require.NoError(t, s.CreateAddress(ctx, b))

	email := NewEmail("read me", "x@example.com", Base)
	email.SPFResult = domain.SPFSoftFail
	email.DMARCResult = domain.DMARCAbsent
	email.DKIMValid = domain.DKIMUnchecked
	Deliver(t, s, email, []domain.Attachment{
		{Filename: "a.txt", ContentType: "text/plain", SizeBytes: 3, Data: []byte("abc")},
	}, a, b)

	detail, err := s.GetEmail(ctx, a.ID, email.ID, false, Base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, detail.IsRead)
	assert.Nil(t, detail.ReadAt)
	assert.Equal(t, "read me", *detail.Subject)
	assert.Equal(t, domain.SPFSoftFail, detail.SPFResult)
	assert.Equal(t, domain.DMARCAbsent, detail.DMARCResult)
	assert.Equal(t, domain.DKIMUnchecked, detail.DKIMValid)
	assert.True(t, detail.HasAttachments)
	assert.Empty(t, detail.RawMessage)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, "a.txt", detail.Attachments[0].Filename)
	assert.EqualValues(t, 3, detail.Attachments[0].SizeBytes)

	readAt := Base.Add(5 * time.Minute)
	detail, err = s.GetEmail(ctx, a.ID, email.ID, true, readAt)
	require.NoError(t, err)
	assert.True(t, detail.IsRead)
	require.NotNil(t, detail.ReadAt)
	assert.True(t, detail.ReadAt.Equal(readAt))

	// 已读状态单调，再次读取不刷新 read_at
	detail, err = s.GetEmail(ctx, a.ID, email.ID, true, readAt.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, detail.ReadAt)
	assert.True(t, detail.ReadAt.Equal(readAt))

	// 已读状态按地址独立
	detail, err = s.GetEmail(ctx, b.ID, email.ID, false, readAt)
	require.NoError(t, err)
	assert.False(t, detail.IsRead)
}

func testOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner := NewAddress("owner@tempmail.local", Base, 24*time.Hour)
	stranger := NewAddress("stranger@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, owner))
	require.NoError(t, s.CreateAddress(ctx, stranger))

	email := Deliver(t, s, NewEmail("private", "x@example.com", Base), []domain.Attachment{
		{Filename: "secret.bin", ContentType: "application/octet-stream", SizeBytes: 1, Data: []byte{1}},
	}, owner)
	detail, err := s.GetEmail(ctx, owner.ID, email.ID, false, Base)
	require.NoError(t, err)
	attID := detail.Attachments[0].ID

	_, err = s.GetEmail(ctx, stranger.ID, email.ID, true, Base)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetRawMessage(ctx, stranger.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetAttachment(ctx, stranger.ID, email.ID, attID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteEmail(ctx, stranger.ID, email.ID), domain.ErrNotFound)

	_, err = s.GetEmail(ctx, owner.ID, uuid.NewString(), false, Base)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// 越权访问不得产生副作用
	detail, err = s.GetEmail(ctx, owner.ID, email.ID, false, Base)
	require.NoError(t, err)
	assert.False(t, detail.IsRead)
}

func testDeleteEmail(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := NewAddress("a@tempmail.local", Base, 24*time.Hour)
	b := NewAddress("b@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, a))
	require.NoError(t, s.CreateAddress(ctx, b))

	email := Deliver(t, s, NewEmail("shared", "x@example.com", Base), []domain.Attachment{
		{Filename: "f.txt", ContentType: "text/plain", SizeBytes: 1, Data: []byte("f")},
	}, a, b)
	detail, err := s.GetEmail(ctx, a.ID, email.ID, false, Base)
	require.NoError(t, err)
	attID := detail.Attachments[0].ID

	require.NoError(t, s.DeleteEmail(ctx, a.ID, email.ID))

	// 删除是全局的，其他收件地址同样不可见
	_, err = s.GetEmail(ctx, b.ID, email.ID, false, Base)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetAttachment(ctx, b.ID, email.ID, attID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteEmail(ctx, a.ID, email.ID), domain.ErrNotFound)

	_, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: b.ID, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func testAttachments(t *testing.T, s storage.Store) {
	ctx := context.Background()
	addr := NewAddress("att@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, addr))

	first := Deliver(t, s, NewEmail("first", "x@example.com", Base), []domain.Attachment{
		{Filename: "report.pdf", ContentType: "application/pdf", SizeBytes: 4, Data: []byte("%PDF")},
	}, addr)
	second := Deliver(t, s, NewEmail("second", "x@example.com", Base.Add(time.Minute)), nil, addr)

	detail, err := s.GetEmail(ctx, addr.ID, first.ID, false, Base)
	require.NoError(t, err)
	attID := detail.Attachments[0].ID

	att, err := s.GetAttachment(ctx, addr.ID, first.ID, attID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, []byte("%PDF"), att.Data)

	// 附件必须属于路径中的邮件
	_, err = s.GetAttachment(ctx, addr.ID, second.ID, attID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetAttachment(ctx, addr.ID, first.ID, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	raw, err := s.GetRawMessage(ctx, addr.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.RawMessage, raw)
}

func testEmailLimit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	addr := NewAddress("limit@tempmail.local", Base, 24*time.Hour)
	require.NoError(t, s.CreateAddress(ctx, addr))

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		e := Deliver(t, s, NewEmail("mail", "x@example.com", Base.Add(time.Duration(i)*time.Minute)), nil, addr)
		ids = append(ids, e.ID)
	}

	deleted, err := s.EnforceEmailLimit(ctx, addr.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	emails, total, err := s.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{ids[4], ids[3], ids[2]}, []string{emails[0].ID, emails[1].ID, emails[2].ID})

	deleted, err = s.EnforceEmailLimit(ctx, addr.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
