package memory

import (
	"testing"

	"github.com/sandrolain/httpqueue/test"
)

func TestCache(t *testing.T) {
	test.Cache(t, New())
}
