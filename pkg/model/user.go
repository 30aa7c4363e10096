package model

// User is the Headscale user a node is registered to.
type User struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	CreatedAt     string  `json:"createdAt"`
	DisplayName   *string `json:"displayName,omitempty"`
	Email         *string `json:"email,omitempty"`
	ProviderID    *string `json:"providerId,omitempty"`
	Provider      *string `json:"provider,omitempty"`
	ProfilePicURL *string `json:"profilePicUrl,omitempty"`
}
