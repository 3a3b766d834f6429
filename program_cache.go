package paramgrid

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ProgramCache stores compiled rule programs keyed by engine and expression.
// Programs capture the helpers of the evaluator that compiled them, so share
// a cache only between evaluators built with the same FunctionRegistry.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a map-backed ProgramCache safe for concurrent use.
type MemoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryProgramCache constructs an empty cache.
func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{programs: map[string]any{}}
}

func (c *MemoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	program, ok := c.programs[key]
	return program, ok
}

func (c *MemoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// Len reports the number of cached programs.
func (c *MemoryProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// LRUProgramCache bounds the number of compiled programs, evicting the least
// recently used expression first.
type LRUProgramCache struct {
	programs *lru.Cache[string, any]
}

// NewLRUProgramCache constructs a cache holding at most size programs.
func NewLRUProgramCache(size int) (*LRUProgramCache, error) {
	programs, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("paramgrid: program cache: %w", err)
	}
	return &LRUProgramCache{programs: programs}, nil
}

func (c *LRUProgramCache) Get(key string) (any, bool) {
	return c.programs.Get(key)
}

func (c *LRUProgramCache) Set(key string, value any) {
	c.programs.Add(key, value)
}

// Len reports the number of cached programs.
func (c *LRUProgramCache) Len() int {
	return c.programs.Len()
}

// programKey separates programs of different engines sharing one cache.
func programKey(engine, expr string) string {
	return engine + ":" + expr
}

// cachedProgram returns the program compiled for expr by engine, compiling
// and storing it on a miss. Entries of an unexpected type are recompiled.
func cachedProgram[P any](cache ProgramCache, engine, expr string, compile func(string) (P, error)) (P, error) {
	key := programKey(engine, expr)
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile(expr)
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}
