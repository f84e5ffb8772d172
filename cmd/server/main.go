package main

import (
	"capital_flux/internal/api"        // Custom package for API handlers
	"capital_flux/internal/config"     // Custom package for configuration
	"capital_flux/internal/middleware" // Custom package for middleware
	"context"                          // context package is needed for Redis operations
	"log"                              // log package is needed for logging

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the sync server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Reachability probe for the client's connectivity monitor
	r.GET("/health", api.HealthHandler())

	// Auth routes
	r.POST("/user", api.RegisterHandler(db))            // Registration endpoint
	r.GET("/user", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint

	// Sync protocol routes (protected by JWT)
	syncGroup := r.Group("/sync")
	// Protect sync routes with JWT middleware and inject Redis client into context
	syncGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), func(c *gin.Context) {
		c.Set("redisClient", redisClient)
		c.Next()
	})
	syncGroup.GET("/wallets", api.ListWalletsHandler(db))                // Filtered wallet read
	syncGroup.GET("/wallets/:id", api.GetWalletHandler(db))              // Single wallet read (push-side conflict check)
	syncGroup.POST("/wallets", api.InsertWalletHandler(db))              // Wallet insert with correlation id
	syncGroup.PUT("/wallets/:id", api.UpdateWalletHandler(db))           // Wallet update keyed by server id
	syncGroup.GET("/transactions", api.ListTransactionsHandler(db))      // Filtered transaction read
	syncGroup.POST("/transactions", api.InsertTransactionHandler(db))    // Transaction insert with correlation id
	syncGroup.PUT("/transactions/:id", api.UpdateTransactionHandler(db)) // Transaction update keyed by server id

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	// Protect admin routes with JWT and AdminOnly middleware
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", api.ListUsersHandler(db, redisClient))                    // List users endpoint
	adminGroup.GET("/transactions", api.ListTransactionsAdminHandler(db, redisClient)) // List transactions endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
