package test_test

import (
	"testing"

	"github.com/sandrolain/httpqueue/backends/memory"
	"github.com/sandrolain/httpqueue/test"
)

func TestMemoryCache(t *testing.T) {
	test.Cache(t, memory.New())
}
