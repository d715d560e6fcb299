package auth

// CreateAccountRequest is the request payload for registering an account
type CreateAccountRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the request payload for logging in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionRequest carries a bearer token in the body for the session endpoints
type SessionRequest struct {
	Token string `json:"token"`
}

// CreateAccountResponse is returned after successful registration
type CreateAccountResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Email   string `json:"email"`
}

// VerifyResponse reports whether a session token is currently valid
type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Email string `json:"email,omitempty"`
}

// ErrorResponse is the generic failure body
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
