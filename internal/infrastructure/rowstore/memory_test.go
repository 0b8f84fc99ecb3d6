package rowstore_test

import (
	"testing"

	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/go-budget-api/internal/infrastructure/rowstore/rowstoretest"
)

func TestMemoryBackend(t *testing.T) {
	rowstoretest.Run(t, func(t *testing.T) rowstore.Backend {
		return rowstore.NewMemoryBackend()
	})
}
