package http

import (
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"

	"github.com/dkeye/memoboard/internal/config"
	"github.com/dkeye/memoboard/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/memstore"
)

const (
	sessionName = "MemoSessions"
	identityKey = "identity"
)

// Identity is the whole session payload: who is logged in.
type Identity struct {
	MemberID domain.MemberID
}

func init() {
	gob.Register(Identity{})
}

func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	switch cfg.Session.Store {
	case config.SessionCookie:
		store = cookie.NewStore([]byte(cfg.Secret))
	case config.SessionMemory:
		store = memstore.NewStore([]byte(cfg.Secret))
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// CurrentIdentity reports the logged-in member, if any.
func CurrentIdentity(s sessions.Session) (Identity, bool) {
	id, ok := s.Get(identityKey).(Identity)
	if !ok || id.MemberID == "" {
		return Identity{}, false
	}
	return id, true
}

func SetIdentity(s sessions.Session, id Identity) error {
	if id.MemberID == "" {
		return errors.New("empty member id")
	}
	s.Set(identityKey, id)
	return s.Save()
}

// ClearSession drops every value and expires the session cookie.
func ClearSession(s sessions.Session) error {
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}

func addFlash(s sessions.Session, msg string) {
	s.AddFlash(msg)
	_ = s.Save()
}

func popFlashes(s sessions.Session) []string {
	raw := s.Flashes()
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
