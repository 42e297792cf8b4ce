package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

type loginRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	UserID      uuid.UUID `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	UserName    *string   `json:"user_name"`
}

type createUserRequest struct {
	Email    string  `json:"email" binding:"required,email,max=255"`
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Password string  `json:"password" binding:"required,min=8,max=40,bcryptmax"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func unprocessable(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": detail})
}

// login is POST {prefix}/login/ with form-encoded username and password.
func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindWith(&req, binding.Form); err != nil {
		unprocessable(c, validationMessage(err))
		return
	}

	res, err := s.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		UserID:      res.User.ID,
		UserEmail:   res.User.Email,
		UserName:    res.User.Name,
	})
}

func (s *HTTPServer) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c, validationMessage(err))
		return
	}

	user, err := s.users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "Registered", "user_id", user.ID)
	c.JSON(http.StatusOK, user.Public())
}

// logout only acknowledges: tokens stay valid until they expire.
func (s *HTTPServer) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"msg": "Successfully logged out."})
}

func (s *HTTPServer) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).Public())
}

func (s *HTTPServer) setActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		unprocessable(c, "id: value is not a valid uuid")
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c, validationMessage(err))
		return
	}

	user, err := s.users.SetActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "Activation changed",
		"user_id", user.ID, "is_active", user.IsActive, "by", currentUser(c).ID)
	c.JSON(http.StatusOK, user.Public())
}

func (s *HTTPServer) health(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		s.logger.Warn(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
