package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhall-dev/studyhall/internal/identity"
	"github.com/studyhall-dev/studyhall/internal/session"
)

// SignInRequest represents a sign-in request
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest represents a sign-up request
type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Role        string `json:"role" binding:"required,role"`
	TeacherRef  string `json:"teacher_ref"`
}

// SessionResponse is the consumer-facing session snapshot
type SessionResponse struct {
	User      *session.User `json:"user"`
	Loading   bool          `json:"loading"`
	Error     string        `json:"error,omitempty"`
	IsTeacher bool          `json:"is_teacher"`
	IsStudent bool          `json:"is_student"`
}

func sessionResponse(snap session.Snapshot) SessionResponse {
	return SessionResponse{
		User:      snap.User,
		Loading:   snap.Loading,
		Error:     snap.Err,
		IsTeacher: snap.IsTeacher(),
		IsStudent: snap.IsStudent(),
	}
}

// operationStatus maps an operation failure onto an HTTP status. Backend
// rejections keep their status; anything else is a gateway-side failure.
func operationStatus(err error) int {
	var provErr *identity.ProviderError
	if errors.As(err, &provErr) {
		if provErr.Code >= 400 && provErr.Code < 500 {
			return provErr.Code
		}
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}

// @Summary Sign in
// @Description Verify an email/password credential with the identity backend
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Sign-in request"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/signin [post]
func (s *Server) signIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessions := session.MustFromContext(c.Request.Context())

	if err := sessions.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		snap := sessions.Snapshot()
		c.JSON(operationStatus(err), gin.H{"error": snap.Err})
		return
	}

	s.logger.Info().Str("email", req.Email).Msg("Sign-in accepted")

	c.JSON(http.StatusOK, sessionResponse(sessions.Snapshot()))
}

// @Summary Sign up
// @Description Create a credential, set its display name, and write the role document
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Sign-up request"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/auth/signup [post]
func (s *Server) signUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, _ := session.ParseRole(req.Role)

	sessions := session.MustFromContext(c.Request.Context())

	err := sessions.SignUp(c.Request.Context(), session.SignUpParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
		TeacherRef:  req.TeacherRef,
	})
	if err != nil {
		snap := sessions.Snapshot()
		c.JSON(operationStatus(err), gin.H{"error": snap.Err})
		return
	}

	s.logger.Info().Str("email", req.Email).Str("role", role.String()).Msg("Sign-up accepted")

	c.JSON(http.StatusCreated, sessionResponse(sessions.Snapshot()))
}

// @Summary Sign out
// @Description Invalidate the current credential
// @Tags auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /api/auth/signout [post]
func (s *Server) signOut(c *gin.Context) {
	sessions := session.MustFromContext(c.Request.Context())

	if err := sessions.SignOut(c.Request.Context()); err != nil {
		snap := sessions.Snapshot()
		c.JSON(operationStatus(err), gin.H{"error": snap.Err})
		return
	}

	c.JSON(http.StatusOK, sessionResponse(sessions.Snapshot()))
}

// @Summary Get session
// @Description Get the current session snapshot with derived role flags
// @Tags auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /api/auth/session [get]
func (s *Server) getSession(c *gin.Context) {
	sessions := session.MustFromContext(c.Request.Context())
	c.JSON(http.StatusOK, sessionResponse(sessions.Snapshot()))
}

// @Summary Session events
// @Description Stream session snapshots as server-sent events
// @Tags auth
// @Produce text/event-stream
// @Router /api/auth/events [get]
func (s *Server) sessionEvents(c *gin.Context) {
	sessions := session.MustFromContext(c.Request.Context())

	updates, cancel := sessions.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("session", sessionResponse(snap))
			return true
		case <-clientGone:
			return false
		}
	})
}
