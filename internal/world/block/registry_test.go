package block

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBlocks   = `{"blocks":[{"id":1,"name":"stone","collidable":true,"health":2,"drops":{"stone":1},"color":[1,2,3]}]}`
	testElements = `{"elements":[{"id":1,"name":"rock","dimensions":[[1,1],[1,2]],"health":[1,2],"color":[4,5,6],"drops":{"stone":2}}]}`
	testItems    = `{"items":[{"id":1,"name":"stone","place_as":"stone"}]}`
)

func catalogFS(blocks, elements, items string) fstest.MapFS {
	return fstest.MapFS{
		"blocks.json":   {Data: []byte(blocks)},
		"elements.json": {Data: []byte(elements)},
		"items.json":    {Data: []byte(items)},
	}
}

func TestLoadDefaultCatalog(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	grass, err := reg.BlockByName("grass")
	require.NoError(t, err)
	assert.True(t, grass.Collidable)
	assert.True(t, reg.IsCollidable(grass.ID))
	assert.False(t, reg.IsTransparent(grass.ID))

	leaves, err := reg.BlockByName("leaves")
	require.NoError(t, err)
	assert.False(t, reg.IsCollidable(leaves.ID))
	assert.True(t, reg.IsTransparent(leaves.ID))

	tree, err := reg.ElementByName("large_tree")
	require.NoError(t, err)
	assert.LessOrEqual(t, tree.Width.Min, tree.Width.Max)
	require.NotEmpty(t, tree.Drops)

	wood, err := reg.ItemByName("wood")
	require.NoError(t, err)
	planks, _ := reg.BlockByName("planks")
	assert.Equal(t, planks.ID, wood.PlaceAs)

	assert.NotEmpty(t, reg.Digest())
	assert.False(t, reg.IsCollidable(Empty))
	assert.True(t, reg.IsTransparent(Empty))
}

func TestLookupUnknownFailsFast(t *testing.T) {
	reg, err := LoadRegistry(catalogFS(testBlocks, testElements, testItems))
	require.NoError(t, err)

	_, err = reg.Block(99)
	assert.ErrorIs(t, err, ErrUnknownBlock)
	_, err = reg.BlockByName("lava")
	assert.ErrorIs(t, err, ErrUnknownBlock)
	_, err = reg.Element(7)
	assert.ErrorIs(t, err, ErrUnknownElement)
	_, err = reg.ItemByName("diamond")
	assert.ErrorIs(t, err, ErrUnknownItem)

	rock, err := reg.Element(1)
	require.NoError(t, err)
	assert.Equal(t, []Drop{{Item: 1, Count: 2}}, rock.Drops)
	assert.Equal(t, 1.5, rock.Height.Pick(0.5))
}

func TestLoadRegistryRejectsSchemaViolation(t *testing.T) {
	// health обязателен
	bad := `{"blocks":[{"id":1,"name":"stone","collidable":true,"color":[1,2,3]}]}`
	_, err := LoadRegistry(catalogFS(bad, testElements, testItems))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	// неизвестное свойство
	bad = `{"blocks":[{"id":1,"name":"stone","collidable":true,"health":1,"color":[1,2,3],"glow":true}]}`
	_, err = LoadRegistry(catalogFS(bad, testElements, testItems))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestLoadRegistryRejectsDanglingReferences(t *testing.T) {
	blocks := `{"blocks":[{"id":1,"name":"stone","collidable":true,"health":2,"drops":{"gold":1},"color":[1,2,3]}]}`
	_, err := LoadRegistry(catalogFS(blocks, testElements, testItems))
	assert.ErrorIs(t, err, ErrUnknownItem)

	items := `{"items":[{"id":1,"name":"stone","place_as":"marble"}]}`
	_, err = LoadRegistry(catalogFS(testBlocks, `{"elements":[]}`, items))
	assert.ErrorIs(t, err, ErrUnknownBlock)
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	blocks := `{"blocks":[
		{"id":1,"name":"stone","collidable":true,"health":2,"color":[1,2,3]},
		{"id":1,"name":"dirt","collidable":true,"health":1,"color":[1,2,3]}]}`
	_, err := LoadRegistry(catalogFS(blocks, `{"elements":[]}`, testItems))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestLoadRegistryMissingFile(t *testing.T) {
	fsys := catalogFS(testBlocks, testElements, testItems)
	delete(fsys, "items.json")
	_, err := LoadRegistry(fsys)
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
