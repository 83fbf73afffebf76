package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/memoboard/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MemoService is what the handlers need from the business layer.
type MemoService interface {
	GetOrCreateMember(ctx context.Context, name string) (*domain.Member, error)
	Member(ctx context.Context, id domain.MemberID) (*domain.Member, error)
	AddMemo(ctx context.Context, memberID domain.MemberID, content string) (*domain.Member, error)
	UpdateMemo(ctx context.Context, memberID domain.MemberID, memoID domain.MemoID, content string) (*domain.Member, error)
	DeleteMemo(ctx context.Context, memberID domain.MemberID, memoID domain.MemoID) (*domain.Member, error)
}

const (
	msgAddInvalid    = "not logged in or content is empty"
	msgUpdateInvalid = "not logged in or invalid input"
	msgDeleteInvalid = "not logged in or memo id is invalid"
	msgRateLimited   = "too many requests, slow down"
)

type loginForm struct {
	Name string `form:"name" binding:"required,notblank"`
}

type addMemoForm struct {
	Content string `form:"content" binding:"required,notblank"`
}

type updateMemoForm struct {
	MemoID  string `form:"memoId" binding:"required"`
	Content string `form:"content" binding:"required,notblank"`
}

type deleteMemoForm struct {
	MemoID string `form:"memoId" binding:"required"`
}

type pageView struct {
	Member  *domain.Member
	Flashes []string
}

type handlers struct {
	svc MemoService
}

func redirectHome(c *gin.Context) {
	c.Redirect(http.StatusFound, "/")
}

func fail(c *gin.Context, s sessions.Session, msg string) {
	addFlash(s, msg)
	redirectHome(c)
}

func (h *handlers) home(c *gin.Context) {
	s := sessions.Default(c)
	view := pageView{Flashes: popFlashes(s)}

	if id, ok := CurrentIdentity(s); ok {
		m, err := h.svc.Member(c.Request.Context(), id.MemberID)
		switch {
		case err == nil:
			view.Member = m
		case errors.Is(err, domain.ErrMemberNotFound):
			// stale identity, e.g. the store was reset
			log.Warn().Str("module", "adapters.http").Str("member", string(id.MemberID)).Msg("session member vanished")
			s.Delete(identityKey)
		default:
			log.Error().Err(err).Str("module", "adapters.http").Str("member", string(id.MemberID)).Msg("load member")
			view.Flashes = append(view.Flashes, "failed to load memos: "+err.Error())
		}
	}

	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
	}
	c.HTML(http.StatusOK, "index.tmpl", view)
}

func (h *handlers) login(c *gin.Context) {
	s := sessions.Default(c)
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		redirectHome(c)
		return
	}

	m, err := h.svc.GetOrCreateMember(c.Request.Context(), form.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("login failed")
		fail(c, s, "failed to log in: "+err.Error())
		return
	}
	if err := SetIdentity(s, Identity{MemberID: m.ID}); err != nil {
		fail(c, s, "failed to log in: "+err.Error())
		return
	}
	log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Str("member", string(m.ID)).Msg("logged in")
	redirectHome(c)
}

func (h *handlers) addMemo(c *gin.Context) {
	s := sessions.Default(c)
	id, ok := CurrentIdentity(s)
	var form addMemoForm
	if !ok || c.ShouldBind(&form) != nil {
		fail(c, s, msgAddInvalid)
		return
	}

	if _, err := h.svc.AddMemo(c.Request.Context(), id.MemberID, form.Content); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("member", string(id.MemberID)).Msg("add memo")
		fail(c, s, "failed to add memo: "+err.Error())
		return
	}
	redirectHome(c)
}

func (h *handlers) updateMemo(c *gin.Context) {
	s := sessions.Default(c)
	id, ok := CurrentIdentity(s)
	var form updateMemoForm
	if !ok || c.ShouldBind(&form) != nil {
		fail(c, s, msgUpdateInvalid)
		return
	}

	if _, err := h.svc.UpdateMemo(c.Request.Context(), id.MemberID, domain.MemoID(form.MemoID), form.Content); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("member", string(id.MemberID)).Msg("update memo")
		fail(c, s, "failed to update memo: "+err.Error())
		return
	}
	redirectHome(c)
}

func (h *handlers) deleteMemo(c *gin.Context) {
	s := sessions.Default(c)
	id, ok := CurrentIdentity(s)
	var form deleteMemoForm
	if !ok || c.ShouldBind(&form) != nil {
		fail(c, s, msgDeleteInvalid)
		return
	}

	if _, err := h.svc.DeleteMemo(c.Request.Context(), id.MemberID, domain.MemoID(form.MemoID)); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("member", string(id.MemberID)).Msg("delete memo")
		fail(c, s, "failed to delete memo: "+err.Error())
		return
	}
	redirectHome(c)
}

func (h *handlers) logout(c *gin.Context) {
	s := sessions.Default(c)
	if err := ClearSession(s); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("clear session")
	}
	redirectHome(c)
}
