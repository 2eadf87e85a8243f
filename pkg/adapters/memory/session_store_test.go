package memory_test

import (
	"testing"

	"github.com/katlego-io/ussdflow/pkg/adapters/memory"
	"github.com/katlego-io/ussdflow/pkg/ports"
)

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessionStore())
}
