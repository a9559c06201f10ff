package sql

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
	"tempmail/inbox/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestSQLStore_Health(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Health())
}

func TestSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore(config.DatabaseConfig{Type: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestSQLStore_SaveEmailRollback(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	addr := storagetest.NewAddress("rollback@tempmail.local", storagetest.Base, time.Hour)
	require.NoError(t, store.CreateAddress(ctx, addr))

	email := storagetest.NewEmail("dup", "x@example.com", storagetest.Base)
	link := domain.Recipient{ID: uuid.NewString(), EmailID: email.ID, AddressID: addr.ID, CreatedAt: storagetest.Base}
	dupLink := link
	dupLink.ID = uuid.NewString()

	// 同一地址重复关联违反唯一索引，整个事务回滚
	err := store.SaveEmail(ctx, email, []domain.Recipient{link, dupLink}, nil)
	require.Error(t, err)

	purged, err := store.DeleteOrphanedEmails(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)

	_, err = store.GetRawMessage(ctx, addr.ID, email.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStore_AuthResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	addr := storagetest.NewAddress("auth@tempmail.local", storagetest.Base, time.Hour)
	require.NoError(t, store.CreateAddress(ctx, addr))

	cases := []struct {
		dkim  domain.DKIMStatus
		spf   domain.SPFResult
		dmarc domain.DMARCResult
	}{
		{domain.DKIMPass, domain.SPFPass, domain.DMARCPass},
		{domain.DKIMFail, domain.SPFPermError, domain.DMARCFail},
		{domain.DKIMUnchecked, domain.SPFAbsent, domain.DMARCAbsent},
	}
	for _, tc := range cases {
		email := storagetest.NewEmail("auth", "x@example.com", storagetest.Base)
		email.DKIMValid = tc.dkim
		email.SPFResult = tc.spf
		email.DMARCResult = tc.dmarc
		storagetest.Deliver(t, store, email, nil, addr)

		detail, err := store.GetEmail(ctx, addr.ID, email.ID, false, storagetest.Base)
		require.NoError(t, err)
		assert.Equal(t, tc.dkim, detail.DKIMValid)
		assert.Equal(t, tc.spf, detail.SPFResult)
		assert.Equal(t, tc.dmarc, detail.DMARCResult)
	}
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := normalizeMySQLDSN("user:pass@tcp(localhost:3306)/tempmail?charset=utf8mb4")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	_, err = normalizeMySQLDSN("not a dsn")
	assert.Error(t, err)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%invoice%", containsPattern("Invoice"))
	assert.Equal(t, "%100!%%", containsPattern("100%"))
	assert.Equal(t, "%a!_b%", containsPattern("a_b"))
	assert.Equal(t, "%wow!!%", containsPattern("wow!"))
}

func TestMigrateAndDrop(t *testing.T) {
	db, err := Open(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	for _, table := range []string{"addresses", "emails", "email_recipients", "attachments"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// 重复迁移是幂等的
	require.NoError(t, Migrate(db))

	require.NoError(t, Drop(db))
	for _, table := range []string{"addresses", "emails", "email_recipients", "attachments"} {
		assert.False(t, db.Migrator().HasTable(table), table)
	}
}
