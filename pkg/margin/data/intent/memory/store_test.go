package memory

import (
	"testing"

	"github.com/code-payments/vault-server/pkg/margin/data/intent/tests"
)

func TestIntentMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}

	tests.RunTests(t, testStore, teardown)
}
