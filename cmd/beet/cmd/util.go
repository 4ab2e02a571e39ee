package cmd

import "github.com/beetdb/beet/internal/node"

func leafInternalSizes(leaf, internal, key, data uint32) node.Layout {
	return node.Layout{
		KeySize:          key,
		DataSize:         data,
		LeafNodeSize:     leaf,
		InternalNodeSize: internal,
	}
}
