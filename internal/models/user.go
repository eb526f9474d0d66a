package models

// User represents a row in the users table.
type User struct {
	ID       int64  `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"-"` // bcrypt hash, never serialize
}

// RegisterForm is the form body for POST /register.
type RegisterForm struct {
	Username     string `validate:"required,min=4"`
	Password     string `validate:"required,min=8"`
	Confirmation string `validate:"eqfield=Password"`
}

// LoginForm is the form body for POST /login.
type LoginForm struct {
	Username string
	Password string
}
