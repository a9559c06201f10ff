package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_IsExpired(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	addr := &Address{CreatedAt: created, ExpiresAt: created.Add(time.Hour)}

	assert.False(t, addr.IsExpired(created))
	assert.False(t, addr.IsExpired(addr.ExpiresAt), "到期瞬间仍然有效")
	assert.True(t, addr.IsExpired(addr.ExpiresAt.Add(time.Nanosecond)))

	assert.Equal(t, time.Hour, addr.TTL(created))
	assert.Equal(t, time.Duration(0), addr.TTL(addr.ExpiresAt.Add(time.Second)))
}

func TestDKIMStatus(t *testing.T) {
	t.Run("数据库取值", func(t *testing.T) {
		v, err := DKIMUnchecked.Value()
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = DKIMPass.Value()
		require.NoError(t, err)
		assert.Equal(t, true, v)

		v, err = DKIMFail.Value()
		require.NoError(t, err)
		assert.Equal(t, false, v)
	})

	t.Run("扫描各驱动表示", func(t *testing.T) {
		cases := []struct {
			src      interface{}
			expected DKIMStatus
		}{
			{nil, DKIMUnchecked},
			{true, DKIMPass},
			{false, DKIMFail},
			{int64(1), DKIMPass},
			{int64(0), DKIMFail},
			{[]byte("t"), DKIMPass},
			{"false", DKIMFail},
		}
		for _, c := range cases {
			var s DKIMStatus
			require.NoError(t, s.Scan(c.src))
			assert.Equal(t, c.expected, s)
		}

		var s DKIMStatus
		assert.Error(t, s.Scan("maybe"))
	})

	t.Run("JSON 三态", func(t *testing.T) {
		out, err := json.Marshal(struct {
			A DKIMStatus `json:"a"`
			B DKIMStatus `json:"b"`
			C DKIMStatus `json:"c"`
		}{DKIMUnchecked, DKIMPass, DKIMFail})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":null,"b":true,"c":false}`, string(out))

		var s DKIMStatus
		require.NoError(t, json.Unmarshal([]byte("false"), &s))
		assert.Equal(t, DKIMFail, s)
		require.NoError(t, json.Unmarshal([]byte("null"), &s))
		assert.Equal(t, DKIMUnchecked, s)
	})
}

func TestSPFResult(t *testing.T) {
	for _, v := range []string{"pass", "fail", "softfail", "neutral", "none", "temperror", "permerror"} {
		r, err := ParseSPFResult(v)
		require.NoError(t, err)
		assert.Equal(t, SPFResult(v), r)
	}

	r, err := ParseSPFResult(" PASS ")
	require.NoError(t, err)
	assert.Equal(t, SPFPass, r)

	r, err = ParseSPFResult("")
	require.NoError(t, err)
	assert.Equal(t, SPFAbsent, r)

	_, err = ParseSPFResult("skipped")
	assert.ErrorIs(t, err, ErrInvalidInput)

	v, err := SPFAbsent.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = SPFResult("bogus").Value()
	assert.Error(t, err)

	var scanned SPFResult
	require.NoError(t, scanned.Scan([]byte("softfail")))
	assert.Equal(t, SPFSoftFail, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, SPFAbsent, scanned)
}

func TestDMARCResult(t *testing.T) {
	r, err := ParseDMARCResult("None")
	require.NoError(t, err)
	assert.Equal(t, DMARCNone, r)

	_, err = ParseDMARCResult("quarantine")
	assert.ErrorIs(t, err, ErrInvalidInput)

	out, err := json.Marshal(map[string]DMARCResult{"absent": DMARCAbsent, "pass": DMARCPass})
	require.NoError(t, err)
	assert.JSONEq(t, `{"absent":null,"pass":"pass"}`, string(out))
}

func TestNewEmailPage(t *testing.T) {
	tests := []struct {
		name    string
		page    int
		items   int
		hasNext bool
		hasPrev bool
	}{
		{"第一页", 1, 10, true, false},
		{"最后一页", 3, 5, false, true},
		{"超出范围", 100, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := InboxQuery{Page: tt.page, PerPage: 10}
			page := NewEmailPage(q, make([]EmailSummary, tt.items), 25)
			assert.Len(t, page.Emails, tt.items)
			assert.Equal(t, 25, page.Total)
			assert.Equal(t, tt.hasNext, page.HasNext)
			assert.Equal(t, tt.hasPrev, page.HasPrev)
		})
	}

	empty := NewEmailPage(InboxQuery{Page: 1, PerPage: 50}, nil, 0)
	assert.NotNil(t, empty.Emails)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestInboxQuery_Validate(t *testing.T) {
	assert.NoError(t, InboxQuery{Page: 1, PerPage: 1}.Validate())
	assert.NoError(t, InboxQuery{Page: 7, PerPage: 100}.Validate())
	assert.ErrorIs(t, InboxQuery{Page: 0, PerPage: 10}.Validate(), ErrInvalidPage)
	assert.ErrorIs(t, InboxQuery{Page: 1, PerPage: 0}.Validate(), ErrInvalidPerPage)
	assert.ErrorIs(t, InboxQuery{Page: 1, PerPage: 101}.Validate(), ErrInvalidPerPage)
	assert.Equal(t, 20, InboxQuery{Page: 3, PerPage: 10}.Offset())
}

func TestInboxQuery_OffsetOverflow(t *testing.T) {
	q := InboxQuery{Page: math.MaxInt/10 + 2, PerPage: 10}
	assert.NoError(t, q.Validate())
	assert.Equal(t, math.MaxInt, q.Offset())
	assert.Equal(t, math.MaxInt, InboxQuery{Page: math.MaxInt, PerPage: 100}.Offset())
	assert.Equal(t, 0, InboxQuery{Page: 0, PerPage: 10}.Offset())

	page := NewEmailPage(q, nil, 3)
	assert.Empty(t, page.Emails)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}
