package model

// Principal is the opaque authenticated-identity handle issued by the
// identity gateway. It is produced exclusively by the gateway on successful
// authentication and consumed read-only by the lifecycle controller;
// a nil *Principal means "signed out".
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}
