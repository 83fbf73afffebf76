// Package domain contains the member document and its embedded memos.
// Nothing here knows about storage or transport.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxNameLen = 64

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrNameEmpty      = errors.New("name empty")
	ErrNameTooLong    = errors.New("name too long")
	ErrContentEmpty   = errors.New("content empty")
	ErrMemoIDEmpty    = errors.New("memo id empty")
)

type MemberID string

// Member is the whole document: memos live inside it and are always
// read and written together with it.
type Member struct {
	ID    MemberID `json:"id"`
	Name  string   `json:"name"`
	Memos []Memo   `json:"memos"`
}

// NewMember builds an unsaved member; the store assigns the ID.
func NewMember(name string) *Member {
	return &Member{Name: name, Memos: []Memo{}}
}

// NormalizeName trims the display name used as the login key.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}

func (m *Member) AddMemo(content string, now time.Time) Memo {
	memo := NewMemo(content, now)
	m.Memos = append(m.Memos, memo)
	return memo
}

// UpdateMemo rewrites the first memo with the given id. It reports false
// when the id is not on this member.
func (m *Member) UpdateMemo(id MemoID, content string, now time.Time) bool {
	for i := range m.Memos {
		if m.Memos[i].ID == id {
			m.Memos[i].Content = content
			m.Memos[i].Timestamp = now.UTC()
			return true
		}
	}
	return false
}

// DeleteMemo drops every memo with the given id and returns how many went.
func (m *Member) DeleteMemo(id MemoID) int {
	kept := m.Memos[:0]
	removed := 0
	for _, memo := range m.Memos {
		if memo.ID == id {
			removed++
			continue
		}
		kept = append(kept, memo)
	}
	m.Memos = kept
	return removed
}

func (m *Member) Memo(id MemoID) (Memo, bool) {
	for _, memo := range m.Memos {
		if memo.ID == id {
			return memo, true
		}
	}
	return Memo{}, false
}

// Clone returns a deep copy so callers never share the memo slice.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	out := &Member{ID: m.ID, Name: m.Name, Memos: make([]Memo, len(m.Memos))}
	copy(out.Memos, m.Memos)
	return out
}
