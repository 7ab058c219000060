package shared

import (
	"sort"
	"strings"
)

// Product claims.
const (
	PermProducts      = "Products:Products"
	PermProduct       = "Products:Product"
	PermProductCreate = "Products:Create"
	PermProductUpdate = "Products:Update"
	PermProductDelete = "Products:Delete"
)

// ProductScopes lists all claims related to products.
func ProductScopes() []string {
	return []string{
		PermProducts,
		PermProduct,
		PermProductCreate,
		PermProductUpdate,
		PermProductDelete,
	}
}

// catalog is built once at start-up and never mutated afterwards.
var catalog = buildCatalog(ProductScopes(), GeoScopes(), CoreScopes())

var catalogIndex = func() map[string]struct{} {
	idx := make(map[string]struct{}, len(catalog))
	for _, c := range catalog {
		idx[c] = struct{}{}
	}
	return idx
}()

func buildCatalog(groups ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 64)
	for _, group := range groups {
		for _, c := range group {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Catalog returns every claim the system recognizes, sorted. The slice is a
// copy and may be modified by the caller.
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	sort.Strings(out)
	return out
}

// CatalogSize reports the number of distinct claims in the catalog.
func CatalogSize() int {
	return len(catalog)
}

// IsCatalogClaim reports whether claim is registered.
func IsCatalogClaim(claim string) bool {
	_, ok := catalogIndex[claim]
	return ok
}

// PolicyModule groups the actions registered under one claim type.
type PolicyModule struct {
	Module   string   `json:"module"`
	Policies []string `json:"policies"`
}

// CatalogModules groups the catalog by claim type, preserving declaration order.
func CatalogModules() []PolicyModule {
	var modules []PolicyModule
	index := make(map[string]int)
	for _, c := range catalog {
		module, action, ok := strings.Cut(c, ":")
		if !ok {
			continue
		}
		i, exists := index[module]
		if !exists {
			i = len(modules)
			index[module] = i
			modules = append(modules, PolicyModule{Module: module})
		}
		modules[i].Policies = append(modules[i].Policies, action)
	}
	return modules
}
