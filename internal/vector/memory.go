package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/domain"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// MemoryIndex keeps one HNSW graph per tenant, fully in process memory.
// It backs tests and single-node deployments where Postgres is not wanted
// on the search path.
type MemoryIndex struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*tenantGraph
}

type tenantGraph struct {
	// hnsw.Graph keys must satisfy cmp.Ordered, so profile UUIDs are
	// stored by their canonical string form.
	graph   *hnsw.Graph[string]
	entries map[uuid.UUID]Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		tenants: make(map[uuid.UUID]*tenantGraph),
	}
}

func newTenantGraph() *tenantGraph {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	return &tenantGraph{
		graph:   g,
		entries: make(map[uuid.UUID]Entry),
	}
}

func (i *MemoryIndex) EnsurePartition(_ context.Context, tenantID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.tenants[tenantID]; !ok {
		i.tenants[tenantID] = newTenantGraph()
	}

	return nil
}

func (i *MemoryIndex) Add(_ context.Context, entry Entry) error {
	normalized, err := Normalize(entry.Embedding)
	if err != nil {
		return err
	}
	entry.Embedding = normalized

	i.mu.Lock()
	defer i.mu.Unlock()

	tg, ok := i.tenants[entry.TenantID]
	if !ok {
		tg = newTenantGraph()
		i.tenants[entry.TenantID] = tg
	}

	// Delete-then-insert keeps a re-enrolled profile from shadowing itself.
	if _, exists := tg.entries[entry.ProfileID]; exists {
		tg.graph.Delete(entry.ProfileID.String())
	}

	tg.graph.Add(hnsw.MakeNode(entry.ProfileID.String(), entry.Embedding))
	tg.entries[entry.ProfileID] = entry

	return nil
}

func (i *MemoryIndex) Remove(_ context.Context, profileID, tenantID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tg, ok := i.tenants[tenantID]
	if !ok {
		return nil
	}

	if _, exists := tg.entries[profileID]; !exists {
		return nil
	}

	tg.graph.Delete(profileID.String())
	delete(tg.entries, profileID)

	return nil
}

func (i *MemoryIndex) Search(_ context.Context, tenantID uuid.UUID, embedding []float32, k int) ([]domain.Match, error) {
	normalized, err := Normalize(embedding)
	if err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	tg, ok := i.tenants[tenantID]
	if !ok || len(tg.entries) == 0 {
		return []domain.Match{}, nil
	}

	neighbors := tg.graph.Search(normalized, k)

	matches := make([]domain.Match, 0, len(neighbors))
	for _, n := range neighbors {
		id, err := uuid.Parse(n.Key)
		if err != nil {
			continue
		}
		entry, ok := tg.entries[id]
		if !ok {
			continue
		}
		matches = append(matches, domain.Match{
			ProfileID:  entry.ProfileID,
			OwnerID:    entry.OwnerID,
			Similarity: Similarity(Cosine(normalized, entry.Embedding)),
			IsPrimary:  entry.IsPrimary,
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[a].ProfileID.String() < matches[b].ProfileID.String()
	})

	return matches, nil
}

func (i *MemoryIndex) Rebuild(_ context.Context, entries []Entry) error {
	rebuilt := make(map[uuid.UUID]*tenantGraph)

	for _, entry := range entries {
		normalized, err := Normalize(entry.Embedding)
		if err != nil {
			return err
		}
		entry.Embedding = normalized

		tg, ok := rebuilt[entry.TenantID]
		if !ok {
			tg = newTenantGraph()
			rebuilt[entry.TenantID] = tg
		}

		tg.graph.Add(hnsw.MakeNode(entry.ProfileID.String(), entry.Embedding))
		tg.entries[entry.ProfileID] = entry
	}

	i.mu.Lock()
	i.tenants = rebuilt
	i.mu.Unlock()

	return nil
}

func (i *MemoryIndex) Size(_ context.Context, tenantID uuid.UUID) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	tg, ok := i.tenants[tenantID]
	if !ok {
		return 0, nil
	}

	return len(tg.entries), nil
}

// Ensure both backends satisfy the contract.
var (
	_ Index = (*MemoryIndex)(nil)
	_ Index = (*PostgresIndex)(nil)
)
