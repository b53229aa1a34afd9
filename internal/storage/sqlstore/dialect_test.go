package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	numbered := Dialect{Numbered: true}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", numbered.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	plain := Dialect{}
	assert.Equal(t, "WHERE x = ?", plain.rebind("WHERE x = ?"))
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	for _, v := range []any{
		want,
		want.Format(time.RFC3339Nano),
		[]byte(want.Format(time.RFC3339Nano)),
		"2026-03-14 09:30:00",
	} {
		var ts timestamp
		require.NoError(t, ts.Scan(v))
		assert.True(t, ts.Equal(want), "scanning %v", v)
	}

	var ts timestamp
	assert.Error(t, ts.Scan("not a time"))
	assert.Error(t, ts.Scan(42))
}
