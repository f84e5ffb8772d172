package api

import (
	"capital_flux/internal/domain" // Importing domain models
	"capital_flux/internal/utils"  // Utility functions
	"net/http"                     // HTTP status codes
	"regexp"                       // Regular expressions
	"strings"                      // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// RegisterRequest is the payload for account creation
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginRequest is the payload for authentication
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token  string `json:"token"`   // JWT token
	UserID uint   `json:"user_id"` // Authenticated principal id
}

// isValidUsername checks if the username is alphanumeric and starts with a letter
func isValidUsername(username string) bool {
	matched, _ := regexp.MatchString(`^[A-Za-z][A-Za-z0-9]*$`, username)
	return matched
}

// isValidPassword checks if the password length is between 8 and 64 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 64
}

// RegisterHandler creates a new account
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate username
		if !isValidUsername(req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be alphanumeric and start with a letter"})
			return
		}
		// Validate password length
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-64 characters"})
			return
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		// Create user with lowercase username to ensure uniqueness
		user := domain.User{Username: strings.ToLower(req.Username), Password: string(hash)}
		if err := db.Create(&user).Error; err != nil {
			// Creation fails on duplicate username
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
			return
		}
		logrus.WithField("user_id", user.ID).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("username = ?", strings.ToLower(req.Username)).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token, UserID: user.ID})
	}
}
