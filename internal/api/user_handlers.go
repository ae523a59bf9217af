package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, role, and a password of at least 8 characters are required"})
		return
	}

	role := models.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role " + req.Role})
		return
	}

	user := &models.User{Email: req.Email, Role: role}
	if err := user.SetPassword(req.Password); err != nil {
		log.Printf("api: password hash failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	if err := s.users.Create(c.Request.Context(), user); err != nil {
		log.Printf("api: user create failed: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": "could not create user " + req.Email})
		return
	}

	s.recordAudit(c, "user.create", user.Email, string(role))
	c.JSON(http.StatusCreated, gin.H{"user": user})
}
