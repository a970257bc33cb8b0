// Package invalidation turns domain events into cache deletions.
package invalidation

import "strings"

// Cache key namespaces. Existing stored entries rely on these exact strings.
const (
	StationsList    = "stations:list"
	StationsMap     = "stations:map"
	StationsNearest = "stations:nearest"
	UsersTop        = "users:top"
	UsersList       = "users:list"

	userStatsPrefix = "userstats:"
	userInfoPrefix  = "userinfo:"
)

// UserStatsKey is the key holding one user's statistics.
func UserStatsKey(email string) string {
	return userStatsPrefix + normalizeEmail(email)
}

// UserInfoKey is the key holding one user's profile.
func UserInfoKey(email string) string {
	return userInfoPrefix + normalizeEmail(email)
}

// Prefix returns the pattern matching every key of a namespace.
func Prefix(namespace string) string {
	return namespace + "*"
}

// StationPatterns are the patterns cleared when station prices change.
func StationPatterns() []string {
	return []string{Prefix(StationsList), Prefix(StationsMap), Prefix(StationsNearest)}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
