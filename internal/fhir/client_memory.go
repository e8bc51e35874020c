package fhir

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryClient stands in for the external store in tests and
// single-node deployments. It assigns ids to temp resources and keeps
// submitted bundles for assertions.
type InMemoryClient struct {
	mu       sync.Mutex
	bundles  []Bundle
	assigned map[string]string
}

func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{assigned: make(map[string]string)}
}

func (c *InMemoryClient) SubmitBundle(_ context.Context, bundle Bundle) (SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bundles = append(c.bundles, bundle)

	assigned := make(map[string]string)
	for _, entry := range bundle.Entries {
		if entry.Resource.TempID == "" {
			continue
		}
		resourceID, ok := c.assigned[entry.Resource.TempID]
		if !ok {
			resourceID = uuid.NewString()
			c.assigned[entry.Resource.TempID] = resourceID
		}
		assigned[entry.Resource.ResourceType] = resourceID
	}
	return SubmitResult{AssignedIDs: assigned}, nil
}

// Bundles returns all submitted bundles, oldest first.
func (c *InMemoryClient) Bundles() []Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Bundle{}, c.bundles...)
}
