package domain

// User is a server-side account. The sync client only ever sees its own
// user id, carried in the JWT.
type User struct {
	ID       uint   `gorm:"primaryKey"`      // Primary key
	Username string `gorm:"unique;not null"` // Unique username
	Password string `gorm:"not null"`        // Hashed password
	Role     string `gorm:"default:user"`    // Role: user or admin
}
