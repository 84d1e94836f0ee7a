package batch

import "sort"

// Item is one unit of batch work: a discovered source file (or session
// directory) and the identifier derived from its name. Output paths are
// fixed at construction and only exposed as copies.
type Item struct {
	SourcePath string
	Identifier string
	Index      int // position in discovery order

	outputs map[string]string
}

// NewItem builds an Item. outputs maps an output kind (e.g. "bot", "npy")
// to its destination path; the map is copied.
func NewItem(sourcePath, identifier string, index int, outputs map[string]string) Item {
	cp := make(map[string]string, len(outputs))
	for k, v := range outputs {
		cp[k] = v
	}
	return Item{
		SourcePath: sourcePath,
		Identifier: identifier,
		Index:      index,
		outputs:    cp,
	}
}

// Output returns the destination path for kind, or "" if the stage declared
// no such output.
func (it Item) Output(kind string) string {
	return it.outputs[kind]
}

// Outputs returns a copy of all declared output paths keyed by kind.
func (it Item) Outputs() map[string]string {
	cp := make(map[string]string, len(it.outputs))
	for k, v := range it.outputs {
		cp[k] = v
	}
	return cp
}

// OutputPaths returns the declared output paths sorted by kind.
func (it Item) OutputPaths() []string {
	kinds := make([]string, 0, len(it.outputs))
	for k := range it.outputs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	paths := make([]string, len(kinds))
	for i, k := range kinds {
		paths[i] = it.outputs[k]
	}
	return paths
}
