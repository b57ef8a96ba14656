package cache

import "fmt"

// Cache key namespace: {entityType}:{id}[:{subresource}][:{page}:{limit}].
//
// Examples:
//   - user:42                      one entity
//   - channel:abc:members         a subresource collection
//   - channel:abc:messages:2:50   one page of a paginated listing
//
// Paginated listings are cached per (page, limit) pair, so mutations
// invalidate them by prefix (see Cache.InvalidatePrefix).

// EntityKey returns the cache key for a single entity.
func EntityKey(entityType, id string) string {
	return fmt.Sprintf("%s:%s", entityType, id)
}

// SubresourceKey returns the cache key for an entity's subresource collection.
func SubresourceKey(entityType, id, subresource string) string {
	return fmt.Sprintf("%s:%s:%s", entityType, id, subresource)
}

// PageKey returns the cache key for one page of a paginated subresource.
func PageKey(entityType, id, subresource string, page, limit int) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", entityType, id, subresource, page, limit)
}

// PagePrefix returns the prefix covering every cached page of a paginated
// subresource, for prefix invalidation.
func PagePrefix(entityType, id, subresource string) string {
	return fmt.Sprintf("%s:%s:%s:", entityType, id, subresource)
}
