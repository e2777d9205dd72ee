package xmlsec

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeExclusiveIsDeterministic(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Foo")
	root.CreateAttr("xmlns", "urn:test")
	root.CreateAttr("b", "2")
	root.CreateAttr("a", "1")
	root.CreateElement("Bar").SetText("hello")

	out1, err := CanonicalizeExclusive(root, false, "")
	require.NoError(t, err)
	out2, err := CanonicalizeExclusive(root, false, "")
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.NotEmpty(t, out1)
}

func TestCanonicalizeExclusiveWithCommentsDiffersFromWithout(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Foo")
	root.CreateAttr("xmlns", "urn:test")
	root.CreateComment("a comment")
	root.CreateElement("Bar").SetText("hello")

	withoutComments, err := CanonicalizeExclusive(root, false, "")
	require.NoError(t, err)
	withComments, err := CanonicalizeExclusive(root, true, "")
	require.NoError(t, err)
	assert.NotEqual(t, string(withoutComments), string(withComments))
}
