// Package sqlstore implements interfaces.LedgerStore on database/sql. The
// postgres and sqlite packages supply a Dialect and the schema.
package sqlstore

import (
	"strconv"
	"strings"
	"time"
)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	// Name is used in error messages.
	Name string
	// Numbered turns ? placeholders into $1, $2, ... when set.
	Numbered bool
	// LockClause is appended to the customer read inside a unit,
	// e.g. " FOR UPDATE". Empty when the transaction itself is exclusive.
	LockClause string
	// EncodeTime converts a timestamp to a driver value.
	EncodeTime func(time.Time) any
	// IsUniqueViolation reports a unique or primary key constraint error.
	IsUniqueViolation func(error) bool
	// IsDuplicateMobile reports a violation of the customer mobile
	// constraint only. Other unique violations on customers stay errors.
	IsDuplicateMobile func(error) bool
}

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) time(t time.Time) any {
	if d.EncodeTime == nil {
		return t.UTC()
	}
	return d.EncodeTime(t.UTC())
}
