package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("30023:" + pkA + ":my-article")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Kind: 30023, PubKey: pkA, DTag: "my-article"}, c)
	assert.Equal(t, "30023:"+pkA+":my-article", c.Tag())
}

func TestParseCoordinateDTagMayContainColons(t *testing.T) {
	c, err := ParseCoordinate("30023:" + pkA + ":a:b:c")
	require.NoError(t, err)
	assert.Equal(t, "a:b:c", c.DTag)
}

func TestParseCoordinateEmptyDTag(t *testing.T) {
	c, err := ParseCoordinate("10002:" + pkA + ":")
	require.NoError(t, err)
	assert.Equal(t, "", c.DTag)
}

func TestParseCoordinateRejectsGarbage(t *testing.T) {
	for _, s := range []string{
		"",
		"30023",
		"30023:" + pkA,
		"notakind:" + pkA + ":d",
		"30023:short:d",
		"30023:" + pkA[:62] + "zz:d",
	} {
		_, err := ParseCoordinate(s)
		assert.Error(t, err, s)
		assert.False(t, IsCoordinate(s), s)
	}
	assert.True(t, IsCoordinate("30023:"+pkA+":d"))
}

func TestEventAddress(t *testing.T) {
	e := Event{Kind: 30023, PubKey: pkA, Tags: Tags{{"d", "my-article"}}}
	assert.Equal(t, Coordinate{Kind: 30023, PubKey: pkA, DTag: "my-article"}, e.Address())

	// Absent d tag and empty d tag are the same coordinate.
	noD := Event{Kind: 30023, PubKey: pkA, Tags: Tags{}}
	emptyD := Event{Kind: 30023, PubKey: pkA, Tags: Tags{{"d", ""}}}
	assert.Equal(t, noD.Address().Tag(), emptyD.Address().Tag())
}

func TestTaggedAddresses(t *testing.T) {
	e := Event{Tags: Tags{
		{"a", "30023:" + pkA + ":one", "wss://relay.example.com"},
		{"a", "garbage"},
		{"a", "30009:" + pkB + ":badge"},
		{"e", idA},
	}}
	addrs := e.TaggedAddresses()
	require.Len(t, addrs, 2)
	assert.Equal(t, "one", addrs[0].DTag)
	assert.Equal(t, 30009, addrs[1].Kind)
}
