package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"time"     // Server-side updated_at stamps

	"capital_flux/internal/domain" // Importing domain models
	"capital_flux/internal/sync"   // Wire record shapes
	"capital_flux/internal/utils"  // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // Server id generation
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// HealthHandler is the unauthenticated reachability probe used by the
// client's connectivity monitor
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ListWalletsHandler returns the caller's wallets, optionally filtered to
// rows updated strictly after the updated_since query parameter
func ListWalletsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		query := db.Where("user_id = ?", userID) // Scope to the authenticated user
		// Filtered read: updated after timestamp
		if since := c.Query("updated_since"); since != "" {
			stamp, err := time.Parse(time.RFC3339, since)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid updated_since timestamp"})
				return
			}
			query = query.Where("updated_at > ?", stamp)
		}
		var wallets []domain.ServerWallet
		if err := query.Order("updated_at asc").Find(&wallets).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wallets"})
			return
		}
		records := make([]sync.WalletRecord, len(wallets))
		for i, w := range wallets {
			records[i] = walletRecord(w)
		}
		c.JSON(http.StatusOK, gin.H{"wallets": records})
	}
}

// GetWalletHandler returns a single wallet by server id. The client's push
// path uses it to read the current updated_at before applying an update.
func GetWalletHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var wallet domain.ServerWallet
		if err := db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&wallet).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": walletRecord(wallet)})
	}
}

// InsertWalletHandler creates a wallet row. The insert is idempotent on
// client_id: re-posting an already-known correlation token returns the
// existing server id instead of creating a duplicate.
func InsertWalletHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var rec sync.WalletRecord // Bind JSON request to the wire shape
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !domain.Currency(rec.Currency).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported currency"})
			return
		}
		// Idempotent correlation: same client_id, same row
		if rec.ClientID != nil {
			var existing domain.ServerWallet
			if err := db.Where("user_id = ? AND client_id = ?", userID, *rec.ClientID).First(&existing).Error; err == nil {
				c.JSON(http.StatusOK, gin.H{"id": existing.ID})
				return
			}
		}
		wallet := domain.ServerWallet{
			ID:        uuid.NewString(), // Server-assigned id
			UserID:    userID.(uint),
			ClientID:  rec.ClientID,
			Name:      rec.Name,
			Currency:  domain.Currency(rec.Currency),
			Balance:   rec.Balance,
			Icon:      rec.Icon,
			Color:     rec.Color,
			IsActive:  rec.IsActive,
			UpdatedAt: time.Now().UTC(), // Stamped server-side
		}
		if err := db.Create(&wallet).Error; err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Error("Failed to insert wallet")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to insert wallet"})
			return
		}
		invalidateAdminCache(c)
		c.JSON(http.StatusCreated, gin.H{"id": wallet.ID})
	}
}

// UpdateWalletHandler updates a wallet row keyed by server id, restamping
// updated_at server-side
func UpdateWalletHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var rec sync.WalletRecord
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !domain.Currency(rec.Currency).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported currency"})
			return
		}
		result := db.Model(&domain.ServerWallet{}).
			Where("id = ? AND user_id = ?", c.Param("id"), userID).
			Updates(map[string]any{
				"name":       rec.Name,
				"currency":   rec.Currency,
				"balance":    rec.Balance,
				"icon":       rec.Icon,
				"color":      rec.Color,
				"is_active":  rec.IsActive,
				"updated_at": time.Now().UTC(), // Stamped server-side
			})
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update wallet"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		invalidateAdminCache(c)
		c.JSON(http.StatusOK, gin.H{"message": "Wallet updated"})
	}
}

// ListTransactionsHandler returns the caller's transactions, optionally
// filtered to rows updated strictly after updated_since
func ListTransactionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		query := db.Where("user_id = ?", userID)
		if since := c.Query("updated_since"); since != "" {
			stamp, err := time.Parse(time.RFC3339, since)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid updated_since timestamp"})
				return
			}
			query = query.Where("updated_at > ?", stamp)
		}
		var txs []domain.ServerTransaction
		if err := query.Order("updated_at asc").Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		records := make([]sync.TransactionRecord, len(txs))
		for i, t := range txs {
			records[i] = transactionRecord(t)
		}
		c.JSON(http.StatusOK, gin.H{"transactions": records})
	}
}

// InsertTransactionHandler creates a transaction row, idempotent on
// client_id. The referenced wallet must already exist for the caller:
// the client pushes wallets first to guarantee that.
func InsertTransactionHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var rec sync.TransactionRecord
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if msg := validateTransactionRecord(rec); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		// Referential integrity: the wallet must exist for this user
		var wallet domain.ServerWallet
		if err := db.Where("id = ? AND user_id = ?", rec.WalletID, userID).First(&wallet).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown wallet"})
			return
		}
		// Idempotent correlation: same client_id, same row
		if rec.ClientID != nil {
			var existing domain.ServerTransaction
			if err := db.Where("user_id = ? AND client_id = ?", userID, *rec.ClientID).First(&existing).Error; err == nil {
				c.JSON(http.StatusOK, gin.H{"id": existing.ID})
				return
			}
		}
		tx := serverTransaction(rec, userID.(uint))
		if err := db.Create(&tx).Error; err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Error("Failed to insert transaction")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to insert transaction"})
			return
		}
		invalidateAdminCache(c)
		c.JSON(http.StatusCreated, gin.H{"id": tx.ID})
	}
}

// UpdateTransactionHandler updates a transaction row keyed by server id
func UpdateTransactionHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var rec sync.TransactionRecord
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if msg := validateTransactionRecord(rec); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		result := db.Model(&domain.ServerTransaction{}).
			Where("id = ? AND user_id = ?", c.Param("id"), userID).
			Updates(map[string]any{
				"wallet_id":       rec.WalletID,
				"category_id":     rec.CategoryID,
				"type":            rec.Type,
				"amount":          rec.Amount,
				"currency":        rec.Currency,
				"original_amount": rec.OriginalAmount,
				"exchange_rate":   rec.ExchangeRate,
				"rate_source":     rec.RateSource,
				"description":     rec.Description,
				"date":            rec.Date,
				"updated_at":      time.Now().UTC(), // Stamped server-side
			})
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update transaction"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		invalidateAdminCache(c)
		c.JSON(http.StatusOK, gin.H{"message": "Transaction updated"})
	}
}

// validateTransactionRecord checks the enum and sign constraints, returning
// an error message or "" when valid
func validateTransactionRecord(rec sync.TransactionRecord) string {
	if !domain.Currency(rec.Currency).Valid() {
		return "Unsupported currency"
	}
	if !domain.TransactionType(rec.Type).Valid() {
		return "Unknown transaction type"
	}
	if rec.Amount.IsNegative() {
		return "Amount must be non-negative"
	}
	return ""
}

// walletRecord maps a stored wallet onto the wire shape
func walletRecord(w domain.ServerWallet) sync.WalletRecord {
	return sync.WalletRecord{
		ID:        w.ID,
		ClientID:  w.ClientID,
		Name:      w.Name,
		Currency:  string(w.Currency),
		Balance:   w.Balance,
		Icon:      w.Icon,
		Color:     w.Color,
		IsActive:  w.IsActive,
		UpdatedAt: w.UpdatedAt,
	}
}

// transactionRecord maps a stored transaction onto the wire shape
func transactionRecord(t domain.ServerTransaction) sync.TransactionRecord {
	var rateSource *string
	if t.RateSource != nil {
		s := string(*t.RateSource)
		rateSource = &s
	}
	return sync.TransactionRecord{
		ID:             t.ID,
		ClientID:       t.ClientID,
		WalletID:       t.WalletID,
		CategoryID:     t.CategoryID,
		Type:           string(t.Type),
		Amount:         t.Amount,
		Currency:       string(t.Currency),
		OriginalAmount: t.OriginalAmount,
		ExchangeRate:   t.ExchangeRate,
		RateSource:     rateSource,
		Description:    t.Description,
		Date:           t.Date,
		UpdatedAt:      t.UpdatedAt,
	}
}

// serverTransaction builds a stored transaction from a wire record
func serverTransaction(rec sync.TransactionRecord, userID uint) domain.ServerTransaction {
	var rateSource *domain.RateSource
	if rec.RateSource != nil {
		rs := domain.RateSource(*rec.RateSource)
		rateSource = &rs
	}
	return domain.ServerTransaction{
		ID:             uuid.NewString(), // Server-assigned id
		UserID:         userID,
		ClientID:       rec.ClientID,
		WalletID:       rec.WalletID,
		CategoryID:     rec.CategoryID,
		Type:           domain.TransactionType(rec.Type),
		Amount:         rec.Amount,
		Currency:       domain.Currency(rec.Currency),
		OriginalAmount: rec.OriginalAmount,
		ExchangeRate:   rec.ExchangeRate,
		RateSource:     rateSource,
		Description:    rec.Description,
		Date:           rec.Date,
		UpdatedAt:      time.Now().UTC(), // Stamped server-side
	}
}

// invalidateAdminCache drops cached admin listings after a sync write. Best
// effort: a stale admin page is acceptable, a failed write is not.
func invalidateAdminCache(c *gin.Context) {
	v, exists := c.Get("redisClient")
	if !exists {
		return
	}
	rdb, ok := v.(*redis.Client)
	if !ok || rdb == nil {
		return
	}
	ctx := context.Background() // Context for Redis operations
	_ = utils.DeleteCacheByPattern(ctx, rdb, "admin:*")
}
