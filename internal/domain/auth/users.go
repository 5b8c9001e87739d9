package auth

// UserListItem is a user record as returned by the user administration endpoints.
type UserListItem struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	UserName  string `json:"userName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}.
type UpdateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	UserName  string `json:"userName,omitempty"`
}

// ChangeRoleRequest is the body of PUT /api/users/{id}/role.
type ChangeRoleRequest struct {
	Role Role `json:"role"`
}

// ResetPasswordRequest is the body of PUT /api/users/{id}/password.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"` //nolint:gosec // request DTO field
}

// MessageResponse is the acknowledgement body returned by role and password changes.
type MessageResponse struct {
	Message string `json:"message"`
}
