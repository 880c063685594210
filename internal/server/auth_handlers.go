package server

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/auth"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/models"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token       string      `json:"token"`
	User        *UserDetail `json:"user"`
	Permissions []string    `json:"permissions"`
}

// MeResponse is the current user with their permission snapshot
type MeResponse struct {
	User        *UserDetail `json:"user"`
	Permissions []string    `json:"permissions"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	StoreIDs  []string  `json:"store_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdatePermissionsRequest replaces a user's grants
type UpdatePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required" validate:"dive,permission"`
}

func newUserDetail(user *models.User) *UserDetail {
	return &UserDetail{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		StoreIDs:  user.StoreIDs(),
		CreatedAt: user.CreatedAt,
	}
}

func sortedPermissions(user *models.User) []string {
	perms := user.Permissions()
	slices.Sort(perms)
	return perms
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := s.db.Preload("Stores").Preload("Grants").Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := s.issuer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	c.JSON(http.StatusOK, LoginResponse{
		Token:       token,
		User:        newUserDetail(&user),
		Permissions: sortedPermissions(&user),
	})
}

func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := models.FindByIDWithPreload(s.db, sessionData.UserID, &user, "Stores", "Grants"); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		User:        newUserDetail(&user),
		Permissions: sortedPermissions(&user),
	})
}

func (s *Server) getPermissions(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	perms := slices.Clone(sessionData.Permissions)
	slices.Sort(perms)
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Preload("Stores").Order("created_at ASC").Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	userDetails := make([]*UserDetail, len(users))
	for i := range users {
		userDetails[i] = newUserDetail(&users[i])
	}

	c.JSON(http.StatusOK, userDetails)
}

// updateUserPermissions replaces the grants of a user wholesale
func (s *Server) updateUserPermissions(c *gin.Context) {
	userID := c.Param("id")

	var req UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Permissions must look like module:action"})
		return
	}

	var user models.User
	if err := models.FindByID(s.db, userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	perms := slices.Compact(slices.Sorted(slices.Values(req.Permissions)))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Grant{}).Error; err != nil {
			return err
		}
		for _, p := range perms {
			if err := tx.Create(&models.Grant{UserID: user.ID, Permission: p}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to update permissions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update permissions"})
		return
	}

	sessionData, _ := GetSessionData(c)
	s.logger.Info().
		Str("user_id", user.ID).
		Strs("permissions", perms).
		Str("updated_by", sessionData.UserID).
		Msg("Permissions updated")

	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}
