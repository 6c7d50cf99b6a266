package graphql

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

// DefaultMaxDepth allows node { neighbors { neighbors { features } } }.
const DefaultMaxDepth = 5

// calculateQueryDepth calculates the maximum depth of a GraphQL query.
// Fragment spreads count the depth of their definition.
func calculateQueryDepth(document *ast.Document) int {
	fragments := make(map[string]*ast.FragmentDefinition)
	for _, definition := range document.Definitions {
		if def, ok := definition.(*ast.FragmentDefinition); ok {
			fragments[def.Name.Value] = def
		}
	}

	maxDepth := 0
	for _, definition := range document.Definitions {
		if def, ok := definition.(*ast.OperationDefinition); ok {
			depth := calculateSelectionSetDepth(def.SelectionSet, 1, fragments, map[string]bool{})
			maxDepth = max(maxDepth, depth)
		}
	}
	return maxDepth
}

// calculateSelectionSetDepth recursively calculates the depth of a selection
// set. Leaf fields do not add depth; seen guards against fragment cycles.
func calculateSelectionSetDepth(selectionSet *ast.SelectionSet, currentDepth int, fragments map[string]*ast.FragmentDefinition, seen map[string]bool) int {
	if selectionSet == nil || len(selectionSet.Selections) == 0 {
		return currentDepth
	}

	maxDepth := currentDepth
	for _, selection := range selectionSet.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if strings.HasPrefix(sel.Name.Value, "__") || sel.SelectionSet == nil {
				continue
			}
			maxDepth = max(maxDepth, calculateSelectionSetDepth(sel.SelectionSet, currentDepth+1, fragments, seen))

		case *ast.InlineFragment:
			maxDepth = max(maxDepth, calculateSelectionSetDepth(sel.SelectionSet, currentDepth, fragments, seen))

		case *ast.FragmentSpread:
			name := sel.Name.Value
			frag, ok := fragments[name]
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			maxDepth = max(maxDepth, calculateSelectionSetDepth(frag.SelectionSet, currentDepth, fragments, seen))
			delete(seen, name)
		}
	}
	return maxDepth
}

// ValidateQueryDepth validates a query against the depth limit
func ValidateQueryDepth(query string, maxDepth int) error {
	document, err := parser.Parse(parser.ParseParams{
		Source: query,
	})
	if err != nil {
		return fmt.Errorf("failed to parse query: %w", err)
	}

	if queryDepth := calculateQueryDepth(document); queryDepth > maxDepth {
		return fmt.Errorf("query depth %d exceeds maximum allowed depth %d", queryDepth, maxDepth)
	}
	return nil
}
