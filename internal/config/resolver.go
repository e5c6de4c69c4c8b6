package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/chatmem/internal/core"
)

// namespaceOrder lists namespaces so that modules registering a service
// are provisioned before the modules that look it up.
var namespaceOrder = []string{"telemetry", "provider", "store", "memory", "gateway"}

func namespaceRank(id string) int {
	if i := slices.Index(namespaceOrder, core.ModuleID(id).Namespace()); i >= 0 {
		return i
	}
	return len(namespaceOrder)
}

// Resolve returns the configured module IDs in load order: by namespace
// rank, then by ID. Unknown namespaces load last.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(namespaceRank(a), namespaceRank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}
