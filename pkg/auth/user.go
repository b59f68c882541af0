package auth

import "strings"

// User is a principal whose abilities are listed explicitly.
//
// A grant is either "ability" (any model), "ability:Model", or "*" for
// everything. Matching is case-sensitive on the ability and the model.
type User struct {
	Name      string
	Abilities []string
}

// NewUser returns a User holding the given grants.
func NewUser(name string, grants ...string) *User {
	return &User{Name: name, Abilities: append([]string(nil), grants...)}
}

func (u *User) Can(ability, model string) bool {
	if u == nil {
		return false
	}
	for _, grant := range u.Abilities {
		if grant == "*" {
			return true
		}
		name, scope, scoped := strings.Cut(grant, ":")
		if name != ability {
			continue
		}
		if !scoped || scope == "*" || scope == model {
			return true
		}
	}
	return false
}
