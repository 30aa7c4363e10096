package model

// UserMapping is the peerlab-gateway authorization record for one user.
type UserMapping struct {
	UserHash string   `json:"user_hash"`
	UserID   string   `json:"user_id"`
	Email    *string  `json:"email,omitempty"`
	ASN      uint32   `json:"asn"`
	Prefixes []string `json:"prefixes"`
}

// MappingsByEmail indexes mappings by email. Later entries win for duplicate emails;
// mappings without an email are ignored.
func MappingsByEmail(mappings []UserMapping) map[string]UserMapping {
	res := make(map[string]UserMapping, len(mappings))
	for _, m := range mappings {
		if m.Email == nil || *m.Email == "" {
			continue
		}
		res[*m.Email] = m
	}
	return res
}
