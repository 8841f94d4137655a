package adapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aelhometta/vm/world"
)

func TestFactoryNewWorldWiresCollaborators(t *testing.T) {
	fm := &world.FileIOMap{}
	f := &Factory{FileMap: fm}

	w := f.NewWorld(8, 1)
	require.Equal(t, fm, w.FileMap)

	info := Describe(w)
	require.Equal(t, uint8(8), info.MaxChainsBinlog)
	require.Equal(t, 1<<8, info.NodeCapacity)
	require.True(t, info.HasFileMap)
	require.False(t, info.HasPeers)
}

func TestDescribeDefaultsToNoCollaborators(t *testing.T) {
	w := world.NewWorld(4, 1)
	info := Describe(w)
	require.False(t, info.HasFileMap)
	require.False(t, info.HasPeers)
}
