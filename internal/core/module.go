package core

import "strings"

// ModuleID is a dotted module identifier such as "memory.engine" or
// "provider.openai". The part before the first dot is the namespace.
type ModuleID string

// Namespace returns the first segment of the ID.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the ID without its namespace.
func (id ModuleID) Name() string {
	_, name, found := strings.Cut(string(id), ".")
	if !found {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every chatmem module.
type Module interface {
	ModuleInfo() ModuleInfo
}
