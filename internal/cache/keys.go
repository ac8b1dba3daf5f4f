package cache

import "time"

// fillGuardTTL bounds how long an invalidation can abort an in-flight fill.
const fillGuardTTL = time.Minute

// PostKey is the cache key of a raw post row with its children.
func PostKey(id string) string {
	return "snap:post:" + id
}

func fillGuardKey(key string) string {
	return key + ":fill"
}
