package redis

const (
	// KeyPrefixVisitor is the prefix for per-visitor consent keys
	KeyPrefixVisitor = "consent:visitor:"
	// KeyAllVisitors is the key for the set of all visitor IDs
	KeyAllVisitors = "consent:visitors"
)

// VisitorKey returns the Redis key holding one storage key of a visitor.
// Example: consent:visitor:0b6c...:cookie-preferences
func VisitorKey(visitorID, key string) string {
	return KeyPrefixVisitor + visitorID + ":" + key
}

// AllVisitorsKey returns the key for the set of all visitor IDs
func AllVisitorsKey() string {
	return KeyAllVisitors
}
