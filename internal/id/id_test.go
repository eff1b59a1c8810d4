package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_LookupNeverReturnsEmpty(t *testing.T) {
	m := NewMap(LegacyToServer)
	m.Set(KindHotel, "h1", "srv-h1")
	m.Set(KindHotel, "", "srv-x")
	m.Set(KindHotel, "h2", "")

	got, ok := m.Lookup(KindHotel, " h1 ")
	require.True(t, ok)
	assert.Equal(t, "srv-h1", got)

	for _, from := range []string{"", "   ", "h2", "missing"} {
		got, ok := m.Lookup(KindHotel, from)
		assert.False(t, ok, "lookup of %q", from)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, m.Len(KindHotel))
}

func TestMap_KindsAreIndependent(t *testing.T) {
	m := NewMap(ServerToLegacy)
	m.Set(KindRoom, "same", "room-legacy")
	m.Set(KindSpace, "same", "space-legacy")

	room, _ := m.Lookup(KindRoom, "same")
	space, _ := m.Lookup(KindSpace, "same")
	assert.Equal(t, "room-legacy", room)
	assert.Equal(t, "space-legacy", space)

	_, ok := m.Lookup(KindTask, "same")
	assert.False(t, ok)
	assert.Equal(t, "server->legacy", m.Direction().String())
}

func TestMap_ListsAndRefs(t *testing.T) {
	m := NewMap(LegacyToServer)
	m.Set(KindRoom, "r1", "A")
	m.Set(KindRoom, "r2", "B")

	assert.Equal(t, []string{"A", "B"}, m.ResolveList(KindRoom, []string{"r1", "nope", "r2"}))

	refs := m.RefList(KindRoom, []string{"r1", "nope"})
	require.Len(t, refs, 2)
	require.NotNil(t, refs[0])
	assert.Equal(t, "A", *refs[0])
	assert.Nil(t, refs[1])

	assert.Nil(t, m.Ref(KindRoom, ""))
	assert.Nil(t, m.RefPtr(KindRoom, nil))

	notes := RemapKeys(m, KindRoom, map[string]string{"r1": "dusty", "gone": "x"})
	assert.Equal(t, map[string]string{"A": "dusty"}, notes)
}

func TestNewIdentifiers(t *testing.T) {
	assert.True(t, IsUUID(New()))
	assert.NotEqual(t, New(), New())

	tok := NewStaffToken()
	assert.True(t, strings.HasPrefix(tok, "stafftok_"))
	assert.Len(t, tok, len("stafftok_")+24)
}
