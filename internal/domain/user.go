package domain

import (
	"errors"
	"strings"
)

// DefaultPartitionKey is where every user entity lives.
const DefaultPartitionKey = "Users"

var ErrEmptyRoleName = errors.New("empty role name")

// User is the table entity. Attribute names are part of the stored format.
type User struct {
	PartitionKey    string `json:"PartitionKey"`
	RowKey          string `json:"RowKey"`
	Email           string `json:"Email"`
	NormalizedEmail string `json:"NormalizedEmail"`
	EmailConfirmed  bool   `json:"EmailConfirmed"`
	PasswordHash    string `json:"PasswordHash"`
	RolesStr        string `json:"RolesStr"` // comma-joined role names
}

// SplitRoles parses a stored role list. Empty entries and repeats are dropped,
// first-seen order is kept. The result is never nil.
func SplitRoles(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	seen := make(map[string]struct{})
	for _, r := range strings.Split(s, ",") {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func JoinRoles(roles []string) string { return strings.Join(roles, ",") }
