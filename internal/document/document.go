// Package document adapts API model documents to manager.Node and provides
// the merge policy used by the daemon.
package document

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"

	"modelsync/internal/manager"
	"modelsync/pkg/types"
)

// Doc is an immutable manager.Node backed by a types.Model.
type Doc struct {
	m types.Model
}

// New wraps m. The caller must not modify m afterwards.
func New(m types.Model) *Doc { return &Doc{m: m} }

func (d *Doc) ModelID() manager.ID { return manager.ID(d.m.ID) }

func (d *Doc) Children() iter.Seq[manager.Node] {
	return func(yield func(manager.Node) bool) {
		for i := range d.m.Children {
			if !yield(&Doc{m: d.m.Children[i]}) {
				return
			}
		}
	}
}

var _ manager.Composer = (*Doc)(nil)

// WithChildren returns a copy of d holding children instead of its own.
func (d *Doc) WithChildren(children []manager.Node) manager.Node {
	out := d.m
	out.Children = make([]types.Model, 0, len(children))
	for _, c := range children {
		out.Children = append(out.Children, ToModel(c))
	}
	return &Doc{m: out}
}

func (d *Doc) Type() string { return d.m.Type }

// Field returns the raw JSON value stored under key.
func (d *Doc) Field(key string) (json.RawMessage, bool) {
	v, ok := d.m.Data[key]
	return v, ok
}

// Model returns the underlying document.
func (d *Doc) Model() types.Model { return d.m }

// Merge is the document merge policy:
//   - both nodes must be documents with the same type (an empty type adopts
//     the other side's type);
//   - incoming data keys overwrite stored ones, other stored keys survive;
//   - incoming children replace stored children unless the incoming node
//     carries none.
func Merge(stored, incoming manager.Node) (manager.Node, error) {
	st, ok := stored.(*Doc)
	if !ok {
		return nil, fmt.Errorf("%w: stored %T is not a document", manager.ErrIncompatible, stored)
	}
	in, ok := incoming.(*Doc)
	if !ok {
		return nil, fmt.Errorf("%w: incoming %T is not a document", manager.ErrIncompatible, incoming)
	}
	if st.m.Type != "" && in.m.Type != "" && st.m.Type != in.m.Type {
		return nil, fmt.Errorf("%w: type %q cannot become %q", manager.ErrIncompatible, st.m.Type, in.m.Type)
	}
	out := in.m
	if out.Type == "" {
		out.Type = st.m.Type
	}
	if len(st.m.Data) > 0 {
		data := maps.Clone(st.m.Data)
		maps.Copy(data, in.m.Data)
		out.Data = data
	}
	if in.m.Children == nil {
		out.Children = st.m.Children
	}
	return &Doc{m: out}, nil
}

// Merger is Merge as a manager.Merger.
var Merger manager.Merger = manager.MergeFunc(Merge)

// ToModel renders any node as a document. Non-document nodes keep only their
// ID and structure.
func ToModel(n manager.Node) types.Model {
	if d, ok := n.(*Doc); ok {
		return d.m
	}
	out := types.Model{ID: string(n.ModelID())}
	for c := range n.Children() {
		out.Children = append(out.Children, ToModel(c))
	}
	return out
}
