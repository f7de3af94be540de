package office

import (
	"sync"

	"github.com/vovakirdan/skyoffice-server/internal/utils"
)

const idLength = 12

// IDPool hands out random ids that are unique among all live reservations.
// One pool is shared by every room in the process.
type IDPool struct {
	mu       sync.Mutex
	reserved map[string]struct{}
	generate func() string
}

func NewIDPool() *IDPool {
	return &IDPool{
		reserved: make(map[string]struct{}),
		generate: randomID,
	}
}

// Reserve draws ids until one is free and claims it.
func (p *IDPool) Reserve() string {
	for {
		id := p.generate()
		p.mu.Lock()
		if _, taken := p.reserved[id]; !taken {
			p.reserved[id] = struct{}{}
			p.mu.Unlock()
			return id
		}
		p.mu.Unlock()
	}
}

// Release frees id for reuse.
func (p *IDPool) Release(id string) {
	p.mu.Lock()
	delete(p.reserved, id)
	p.mu.Unlock()
}

// Reserved reports whether id is currently claimed.
func (p *IDPool) Reserved(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.reserved[id]
	return ok
}

// Len returns the number of live reservations.
func (p *IDPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reserved)
}

func randomID() string {
	return utils.NewID(idLength)
}
