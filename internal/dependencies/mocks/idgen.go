package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
)

// MockIDGen is a mock implementation of idgen.Generator for testing.
// Queued values are returned first; after that it counts up
// deterministically.
type MockIDGen struct {
	mu sync.Mutex

	// IDResults is a queue of results to return from NewID
	IDResults []string
	idIndex   int
	idCounter int

	// TokenResults is a queue of results to return from NewToken
	TokenResults []string
	tokenIndex   int
	tokenCounter int
}

// Ensure MockIDGen implements Generator
var _ idgen.Generator = (*MockIDGen)(nil)

// NewMockIDGen creates a new MockIDGen
func NewMockIDGen() *MockIDGen {
	return &MockIDGen{}
}

// NewID returns the next queued ID, or a counter-based ObjectID hex string
func (g *MockIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idIndex < len(g.IDResults) {
		result := g.IDResults[g.idIndex]
		g.idIndex++
		return result
	}
	g.idCounter++
	return fmt.Sprintf("%024x", g.idCounter)
}

// NewToken returns the next queued token, or a counter-based token
func (g *MockIDGen) NewToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tokenIndex < len(g.TokenResults) {
		result := g.TokenResults[g.tokenIndex]
		g.tokenIndex++
		return result
	}
	g.tokenCounter++
	return fmt.Sprintf("token-%d", g.tokenCounter)
}

// QueueID adds values to the NewID result queue
func (g *MockIDGen) QueueID(values ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.IDResults = append(g.IDResults, values...)
}

// QueueToken adds values to the NewToken result queue
func (g *MockIDGen) QueueToken(values ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TokenResults = append(g.TokenResults, values...)
}
