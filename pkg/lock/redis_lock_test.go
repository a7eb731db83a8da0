package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceKeyPerSlot(t *testing.T) {
	assert.Equal(t, "teacher:t-1:2024-06-03:14:00-16:00", ResourceKey("t-1", "2024-06-03", "14:00-16:00"))
}

func TestResourceKeyPerDay(t *testing.T) {
	assert.Equal(t, "teacher:t-1:2024-06-03", ResourceKey("t-1", "2024-06-03", ""))
}

func TestNamespacedDefaultsPrefix(t *testing.T) {
	l := NewRedisLock(nil, "")
	assert.Equal(t, "lock:teacher:t-1:2024-06-03", l.namespaced("teacher:t-1:2024-06-03"))
}
