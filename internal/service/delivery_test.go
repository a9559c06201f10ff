package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/pool"
	"tempmail/inbox/internal/storage/memory"
	"tempmail/inbox/internal/storage/storagetest"
)

var allChecks = config.ValidationConfig{CheckDKIM: true, CheckSPF: true, CheckDMARC: true}

func newDeliveryFixture(t *testing.T, cfg config.AddressConfig, validation config.ValidationConfig, workers *pool.WorkerPool) (*DeliveryService, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	svc := NewDeliveryService(store, cfg, validation, workers, zap.NewNop())
	svc.SetClock(clock.Now)
	return svc, store, clock
}

func sampleInput(to string, recipients ...string) DeliverInput {
	return DeliverInput{
		MessageID:  "<abc@example.com>",
		Subject:    strPtr("Hello"),
		From:       "sender@example.com",
		To:         to,
		Recipients: recipients,
		RawHeaders: "Subject: Hello",
		BodyPlain:  strPtr("hi there"),
		Raw:        []byte("Subject: Hello\r\n\r\nhi there"),
		DKIM:       domain.DKIMPass,
		SPF:        domain.SPFSoftFail,
		DMARC:      domain.DMARCFail,
	}
}

func TestDeliveryService_Deliver(t *testing.T) {
	svc, store, clock := newDeliveryFixture(t, testAddressConfig(), allChecks, nil)
	ctx := context.Background()

	alice := storagetest.NewAddress("alice@tempmail.local", clock.Now(), 24*time.Hour)
	bob := storagetest.NewAddress("bob@tempmail.local", clock.Now(), 24*time.Hour)
	stale := storagetest.NewAddress("stale@tempmail.local", clock.Now().Add(-2*time.Hour), time.Hour)
	for _, a := range []*domain.Address{alice, bob, stale} {
		require.NoError(t, store.CreateAddress(ctx, a))
	}

	in := sampleInput("alice@tempmail.local",
		"ALICE@tempmail.local", " bob@tempmail.local ", "stale@tempmail.local", "ghost@tempmail.local", "alice@tempmail.local")
	in.Attachments = []AttachmentInput{{Filename: "a.txt", ContentType: "text/plain", Data: []byte("abc")}}

	email, err := svc.Deliver(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(len(in.Raw)), email.SizeBytes)
	assert.True(t, email.HasAttachments)
	assert.Equal(t, clock.Now(), email.ReceivedAt)

	for _, a := range []*domain.Address{alice, bob} {
		detail, err := store.GetEmail(ctx, a.ID, email.ID, false, clock.Now())
		require.NoError(t, err)
		assert.Equal(t, "Hello", *detail.Subject)
		assert.Equal(t, domain.DKIMPass, detail.DKIMValid)
		assert.Equal(t, domain.SPFSoftFail, detail.SPFResult)
		assert.Equal(t, domain.DMARCFail, detail.DMARCResult)
		require.Len(t, detail.Attachments, 1)
		assert.Equal(t, int64(3), detail.Attachments[0].SizeBytes)
	}

	_, err = store.GetEmail(ctx, stale.ID, email.ID, false, clock.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryService_NoRecipients(t *testing.T) {
	svc, _, _ := newDeliveryFixture(t, testAddressConfig(), allChecks, nil)

	_, err := svc.Deliver(context.Background(), sampleInput("nobody@tempmail.local"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryService_RejectsUnknownResults(t *testing.T) {
	svc, _, _ := newDeliveryFixture(t, testAddressConfig(), allChecks, nil)

	in := sampleInput("alice@tempmail.local")
	in.SPF = domain.SPFResult("maybe")
	_, err := svc.Deliver(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeliveryService_ValidationDisabled(t *testing.T) {
	svc, store, clock := newDeliveryFixture(t, testAddressConfig(), config.ValidationConfig{CheckSPF: true}, nil)
	ctx := context.Background()

	addr := storagetest.NewAddress("carol@tempmail.local", clock.Now(), 24*time.Hour)
	require.NoError(t, store.CreateAddress(ctx, addr))

	email, err := svc.Deliver(ctx, sampleInput(addr.Email))
	require.NoError(t, err)

	detail, err := store.GetEmail(ctx, addr.ID, email.ID, false, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.DKIMUnchecked, detail.DKIMValid)
	assert.Equal(t, domain.SPFSoftFail, detail.SPFResult)
	assert.Equal(t, domain.DMARCAbsent, detail.DMARCResult)
}

func TestDeliveryService_EmailLimitInline(t *testing.T) {
	cfg := testAddressConfig()
	cfg.MaxEmailsPerAddress = 2
	svc, store, clock := newDeliveryFixture(t, cfg, allChecks, nil)
	ctx := context.Background()

	addr := storagetest.NewAddress("dave@tempmail.local", clock.Now(), 24*time.Hour)
	require.NoError(t, store.CreateAddress(ctx, addr))

	var ids []string
	for i := 0; i < 4; i++ {
		clock.Advance(time.Minute)
		email, err := svc.Deliver(ctx, sampleInput(addr.Email))
		require.NoError(t, err)
		ids = append(ids, email.ID)
	}

	emails, total, err := store.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, ids[3], emails[0].ID)
	assert.Equal(t, ids[2], emails[1].ID)
}

func TestDeliveryService_EmailLimitOnPool(t *testing.T) {
	cfg := testAddressConfig()
	cfg.MaxEmailsPerAddress = 1
	workers := pool.NewWorkerPool(2, 16, zap.NewNop())
	workers.Start(context.Background())

	svc, store, clock := newDeliveryFixture(t, cfg, allChecks, workers)
	ctx := context.Background()

	addr := storagetest.NewAddress("erin@tempmail.local", clock.Now(), 24*time.Hour)
	require.NoError(t, store.CreateAddress(ctx, addr))

	var last *domain.Email
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		email, err := svc.Deliver(ctx, sampleInput(addr.Email))
		require.NoError(t, err)
		last = email
	}
	workers.Stop()

	emails, total, err := store.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, last.ID, emails[0].ID)
}
