package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var globalRegistry = newRegistry()

type registry struct {
	mu       sync.RWMutex
	families map[string]Family
}

func newRegistry() *registry {
	return &registry{families: make(map[string]Family)}
}

// Register 将数据集家族加入全局注册表，重复键或非法描述会返回错误。
func Register(f Family) error {
	return globalRegistry.register(f)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(f Family) {
	if err := Register(f); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的家族副本。
func Resolve(key string) (Family, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的家族列表。
func List() []Family {
	return globalRegistry.list()
}

// Keys 返回所有已注册家族的键。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, f := range items {
		result[i] = f.Key
	}
	return result
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(f Family) error {
	key := r.normalizeKey(f.Key)
	if key == "" {
		return fmt.Errorf("family key is required")
	}
	f.Key = key
	if err := f.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.families[key]; exists {
		return fmt.Errorf("family %s already registered", key)
	}
	r.families[key] = f.clone()
	return nil
}

func (r *registry) resolve(key string) (Family, bool) {
	if key == "" {
		return Family{}, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.families[normalized]
	if !ok {
		return Family{}, false
	}
	return f.clone(), true
}

func (r *registry) list() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.families) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.families))
	for key := range r.families {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Family, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.families[key].clone())
	}
	return result
}
