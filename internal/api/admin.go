package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Time durations

	"capital_flux/internal/domain" // Importing domain models
	"capital_flux/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID          uint   `json:"id"`           // User ID
	Username    string `json:"username"`     // Username
	Role        string `json:"role"`         // User role
	WalletCount int64  `json:"wallet_count"` // Number of wallets owned
}

// ListUsersHandler returns all users with their wallet counts
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Use background context for Redis
		// Create a cache key based on pagination parameters
		cacheKey := "admin:users:page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		var cached struct {
			Users      []UserAdminResponse `json:"users"`       // List of users
			Page       int                 `json:"page"`        // Current page
			PageSize   int                 `json:"page_size"`   // Page size
			Total      int64               `json:"total"`       // Total number of users
			TotalPages int                 `json:"total_pages"` // Total pages
		}
		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"users":       cached.Users,
				"page":        cached.Page,
				"page_size":   cached.PageSize,
				"total":       cached.Total,
				"total_pages": cached.TotalPages,
				"cached":      true, // Indicate response is from cache
			})
			return
		}
		page, pageSize := pagination(c) // Parse pagination parameters
		offset := (page - 1) * pageSize // Calculate offset
		var total int64                 // Total user count
		if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
			return
		}
		var users []domain.User // Slice to hold users
		if err := db.Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		// Map users to response format with wallet counts
		resp := make([]UserAdminResponse, len(users))
		for i, u := range users {
			var walletCount int64
			db.Model(&domain.ServerWallet{}).Where("user_id = ?", u.ID).Count(&walletCount)
			resp[i] = UserAdminResponse{
				ID:          u.ID,
				Username:    u.Username,
				Role:        u.Role,
				WalletCount: walletCount,
			}
		}
		totalPages := (int(total) + pageSize - 1) / pageSize // Calculate total pages
		respData := gin.H{
			"users":       resp,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
			"cached":      false, // Indicate response is not from cache
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData)
	}
}

// ListTransactionsAdminHandler returns all transactions, with optional
// filtering by user, type, or updated-at window
func ListTransactionsAdminHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, "")) // Append key-value pair
		}
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached struct {
			Transactions []domain.ServerTransaction `json:"transactions"` // List of transactions
			Page         int                        `json:"page"`         // Current page
			PageSize     int                        `json:"page_size"`    // Page size
			Total        int64                      `json:"total"`        // Total number of transactions
			TotalPages   int                        `json:"total_pages"`  // Total pages
		}
		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions,
				"page":         cached.Page,
				"page_size":    cached.PageSize,
				"total":        cached.Total,
				"total_pages":  cached.TotalPages,
				"cached":       true,
			})
			return
		}
		page, pageSize := pagination(c)
		offset := (page - 1) * pageSize                // Calculate offset for pagination
		query := db.Model(&domain.ServerTransaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("user_id = ?", userID) // Filter by user ID
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if from := c.Query("from"); from != "" {
			query = query.Where("updated_at >= ?", from) // Filter by start of window
		}
		if to := c.Query("to"); to != "" {
			query = query.Where("updated_at <= ?", to) // Filter by end of window
		}
		var total int64 // Total transaction count
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.ServerTransaction // Slice to hold transactions
		if err := query.Order("updated_at desc").Offset(offset).Limit(pageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize
		respData := gin.H{
			"transactions": txs,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
			"cached":       false,
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData)
	}
}

// pagination parses page and page_size query parameters with defaults
func pagination(c *gin.Context) (page, pageSize int) {
	page = 1      // Default page
	pageSize = 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size if valid
		}
	}
	return page, pageSize
}
