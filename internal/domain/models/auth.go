package models

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// ArchiveClaims is the token payload issued by the upstream identity provider.
// Group membership arrives either as "groups" or, from Cognito pools, as
// "cognito:groups".
type ArchiveClaims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Groups        []string `json:"groups"`
	CognitoGroups []string `json:"cognito:groups"`
}

// AllGroups merges both group claims.
func (c *ArchiveClaims) AllGroups() []string {
	groups := make([]string, 0, len(c.Groups)+len(c.CognitoGroups))
	groups = append(groups, c.Groups...)
	for _, g := range c.CognitoGroups {
		if !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}
	return groups
}

// Identity is the resolved caller of a request.
type Identity struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email,omitempty"`
	Name    string   `json:"name,omitempty"`
	Groups  []string `json:"groups,omitempty"`
	IsAdmin bool     `json:"isAdmin"`
}

// NewIdentity builds an identity from verified claims.
func NewIdentity(claims *ArchiveClaims, adminGroup string) *Identity {
	groups := claims.AllGroups()
	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Groups:  groups,
		IsAdmin: adminGroup != "" && slices.Contains(groups, adminGroup),
	}
}
