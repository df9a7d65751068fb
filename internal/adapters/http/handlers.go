package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dkeye/VoiceMesh/internal/directory"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/dkeye/VoiceMesh/internal/identity"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	deps        Deps
	requireAuth bool
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

type membersResponse struct {
	ChannelID domain.ChannelID `json:"channelId"`
	Users     []protocol.User  `json:"users"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrEmailTaken), errors.Is(err, directory.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, directory.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, directory.ErrNoSuchEntry):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrDisplayNameEmpty),
		errors.Is(err, domain.ErrDisplayNameTooLong),
		errors.Is(err, domain.ErrChannelNameEmpty),
		errors.Is(err, domain.ErrChannelNameTooLong):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func (h *handlers) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, password and username are required"})
		return
	}
	acct, err := h.deps.Identity.SignUp(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	sess, err := h.deps.Identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(sessionTokenKey, sess.Token)
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handlers) session(c *gin.Context) {
	c.JSON(http.StatusOK, accountFrom(c))
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.deps.Identity.SignOut(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listChannels(c *gin.Context) {
	list, err := h.deps.Directory.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": list})
}

func (h *handlers) createChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	ch, err := h.deps.Directory.Create(c.Request.Context(), req.Name, accountFrom(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (h *handlers) getChannel(c *gin.Context) {
	ch, err := h.deps.Directory.Get(c.Request.Context(), domain.ChannelID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *handlers) deleteChannel(c *gin.Context) {
	err := h.deps.Directory.Delete(c.Request.Context(), domain.ChannelID(c.Param("id")), accountFrom(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// channelMembers answers from the relay's registry, not the directory: a
// channel id with nobody in it has an empty roster.
func (h *handlers) channelMembers(c *gin.Context) {
	id := domain.ChannelID(c.Param("id"))
	roster, err := h.deps.Relay.Roster(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	users := make([]protocol.User, 0, len(roster))
	for _, p := range roster {
		users = append(users, protocol.User{ID: p.ID, Username: p.Label()})
	}
	c.JSON(http.StatusOK, membersResponse{ChannelID: id, Users: users})
}

func (h *handlers) liveChannels(c *gin.Context) {
	stats, err := h.deps.Relay.Channels(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": stats})
}

// channelEvents streams directory changes as server-sent events.
func (h *handlers) channelEvents(c *gin.Context) {
	ctx := c.Request.Context()
	changes, err := h.deps.Directory.Changes(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("channels", change)
			return true
		}
	})
}

func (h *handlers) signal(ctx context.Context, c *gin.Context) {
	var who *domain.Participant
	if acct := accountFrom(c); acct != nil {
		p := acct.Participant()
		who = &p
	} else if h.requireAuth {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	h.deps.Signal.HandleSignal(ctx, c, who)
}
