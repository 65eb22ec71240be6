package cache

import (
	"strings"
	"time"
)

// TagListKey holds the full tag list served by the tag index.
const TagListKey = "tags:all"

const TagListTTL = 10 * time.Minute

func keyFamily(key string) string {
	family, _, _ := strings.Cut(key, ":")
	return family
}
