package gitobj

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// UserInfo is the value of an author or committer header. Timestamp and
// Timezone are kept exactly as written.
type UserInfo struct {
	Name      string
	Email     string
	Timestamp string
	Timezone  string
}

// ParseUserInfo decodes
//
//	<name> SP "<" <email> ">" SP <timestamp> SP <timezone>
//
// Exactly one space is expected on each side of the bracketed email.
func ParseUserInfo(value []byte) (UserInfo, error) {
	name, rest, ok := splitAt(value, '<')
	if !ok {
		return UserInfo{}, newError(MissingEmailOpenBracket, "email")
	}
	if len(name) == 0 || name[len(name)-1] != ' ' {
		return UserInfo{}, newError(MalformedUserInfo, "name")
	}
	name = name[:len(name)-1]

	email, rest, ok := splitAt(rest, '>')
	if !ok {
		return UserInfo{}, newError(MissingEmailCloseBracket, "email")
	}
	if len(rest) == 0 || rest[0] != ' ' {
		return UserInfo{}, newError(MalformedUserInfo, "date")
	}

	timestamp, timezone, ok := splitAt(rest[1:], ' ')
	if !ok {
		return UserInfo{}, newError(MalformedDateField, "date")
	}

	fields := []struct {
		name string
		val  []byte
	}{
		{"name", name},
		{"email", email},
		{"timestamp", timestamp},
		{"timezone", timezone},
	}
	for _, f := range fields {
		if !utf8.Valid(f.val) {
			return UserInfo{}, newError(NonUTF8Field, f.name)
		}
	}
	return UserInfo{
		Name:      string(name),
		Email:     string(email),
		Timestamp: string(timestamp),
		Timezone:  string(timezone),
	}, nil
}

// Time interprets Timestamp as unix seconds in the fixed zone given by
// Timezone ([+-]HHMM).
func (u UserInfo) Time() (time.Time, error) {
	secs, err := strconv.ParseInt(u.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", u.Timestamp, err)
	}
	tz := u.Timezone
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return time.Time{}, fmt.Errorf("timezone %q: want [+-]HHMM", tz)
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return time.Time{}, fmt.Errorf("timezone %q: %w", tz, err)
	}
	mins, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return time.Time{}, fmt.Errorf("timezone %q: %w", tz, err)
	}
	offset := hours*60*60 + mins*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.Unix(secs, 0).In(time.FixedZone("UTC"+tz, offset)), nil
}
