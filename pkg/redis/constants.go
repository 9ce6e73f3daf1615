package redis

import "time"

// Redis namespaces defines the top-level key prefixes for different types of data.
const (
	NamespaceReceipts = "receipts" // registration receipts, keyed by serviceId
	NamespaceCache    = "cache"    // general-purpose caching (demo CacheService)
	NamespaceFeed     = "feed"     // demonstration feed events
)

// Redis contexts defines the second-level key prefixes for specific domains.
const (
	ContextRegistry = "registry"
	ContextDemo     = "demo"
)

// TTL constants defines the time-to-live durations for different types of data.
const (
	TTLReceipt = 7 * 24 * time.Hour // matches RegistrationReceipt.expiresAt - createdAt
)

// ChangeStreamKey is the Redis stream onto which every receipt write/delete
// is appended; the Change Propagator reads it with a consumer group.
const ChangeStreamKey = "hc2:receipts:changes"

// ReceiptKeyPrefix is the hash-key prefix each receipt document is stored under.
const ReceiptKeyPrefix = "hc2:receipts:"
