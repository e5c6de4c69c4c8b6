package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var registry = struct {
	sync.RWMutex
	modules map[ModuleID]ModuleInfo
}{modules: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds a module to the registry. It is meant for init
// functions and panics on an invalid or duplicate ID: both are
// programming errors in the registering package.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if err := checkInfo(info); err != nil {
		panic(err)
	}

	registry.Lock()
	defer registry.Unlock()
	if _, exists := registry.modules[info.ID]; exists {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	registry.modules[info.ID] = info
}

func checkInfo(info ModuleInfo) error {
	ns, name, found := strings.Cut(string(info.ID), ".")
	switch {
	case !found || ns == "" || name == "":
		return fmt.Errorf("core: module ID %q must have the form namespace.name", info.ID)
	case info.New == nil:
		return fmt.Errorf("core: module %s: New must not be nil", info.ID)
	}
	return nil
}

// GetModule returns the ModuleInfo registered under id.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.modules[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace, sorted by ID:
// "store" matches "store.sqlite" but not "storage.s3".
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func collect(keep func(ModuleID) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var result []ModuleInfo
	for id, info := range registry.modules {
		if keep(id) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return result
}

func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.modules = make(map[ModuleID]ModuleInfo)
}
