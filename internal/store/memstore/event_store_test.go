package memstore_test

import (
	"testing"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/store/memstore"
	"github.com/Priya8975/marketplace/internal/store/storetest"
)

func TestEventStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.EventStore[project.Event] {
		return memstore.NewEventStore[project.Event]()
	})
}
