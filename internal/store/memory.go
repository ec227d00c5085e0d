package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-clock/internal/embed"
	"github.com/kozaktomas/face-clock/internal/identitystore"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// MemoryTemplateRepository keeps enrollment templates in memory with an
// HNSW index for nearest neighbor search. Suitable for single-site
// deployments and as the stub store in contract tests.
type MemoryTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*StoredTemplate // keyed by employee ID
	graph     *hnsw.Graph[string]
}

// NewMemoryTemplateRepository creates an empty in-memory template store.
func NewMemoryTemplateRepository() *MemoryTemplateRepository {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return &MemoryTemplateRepository{
		templates: make(map[string]*StoredTemplate),
		graph:     g,
	}
}

func (r *MemoryTemplateRepository) Upsert(_ context.Context, template *StoredTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *template
	clone.Embedding = append([]float32(nil), template.Embedding...)
	if _, exists := r.templates[template.EmployeeID]; exists {
		r.graph.Delete(template.EmployeeID)
	}
	r.templates[template.EmployeeID] = &clone
	r.graph.Add(hnsw.MakeNode(template.EmployeeID, clone.Embedding))
	return nil
}

func (r *MemoryTemplateRepository) Get(_ context.Context, employeeID string) (*StoredTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	template, ok := r.templates[employeeID]
	if !ok {
		return nil, nil
	}
	clone := *template
	return &clone, nil
}

func (r *MemoryTemplateRepository) FindNearest(_ context.Context, embedding []float32, k int) ([]TemplateMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.templates) == 0 {
		return nil, nil
	}
	if k < 1 {
		k = 1
	}

	neighbors := r.graph.Search(embedding, k)
	matches := make([]TemplateMatch, 0, len(neighbors))
	for _, n := range neighbors {
		template, ok := r.templates[n.Key]
		if !ok {
			continue
		}
		// Embeddings are unit vectors, so the dot product is the cosine
		// similarity.
		matches = append(matches, TemplateMatch{
			Template:   *template,
			Similarity: embed.Dot(embedding, template.Embedding),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

func (r *MemoryTemplateRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates), nil
}

// MemoryEventRepository keeps the attendance log in memory, newest last.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events []StoredEvent
}

// NewMemoryEventRepository creates an empty in-memory event log.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{}
}

func (r *MemoryEventRepository) Append(_ context.Context, event *StoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *MemoryEventRepository) List(_ context.Context, filter EventFilter) ([]StoredEvent, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Newest first.
	var matched []StoredEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		event := r.events[i]
		if filter.Date != "" && event.EventTime.Format("2006-01-02") != filter.Date {
			continue
		}
		if !eventMatches(&event, filter.Search) {
			continue
		}
		matched = append(matched, event)
	}

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *MemoryEventRepository) LastClockEvent(_ context.Context, employeeID string, day string) (*StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		event := r.events[i]
		if event.EventType != identitystore.EventVerification || !event.Recognized {
			continue
		}
		if event.EmployeeID != employeeID || event.EventTime.Format("2006-01-02") != day {
			continue
		}
		clone := event
		return &clone, nil
	}
	return nil, nil
}
