package ir

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginPosition(t *testing.T) {
	fset := token.NewFileSet()
	content := []byte("units:\n  - name: main\n")
	file := fset.AddFile("unit.yaml", -1, len(content))
	file.SetLinesForContent(content)
	start := file.LineStart(2) + 4

	o := Origin{Range: Range{PosStart: start, PosEnd: start}, Construct: "unit main"}
	assert.Equal(t, "unit main", o.String())
	pos, ok := o.Position(fset)
	require.True(t, ok)
	assert.Equal(t, "unit.yaml:2:5", pos.String())

	_, ok = Origin{Construct: "unit main"}.Position(fset)
	assert.False(t, ok)
	_, ok = o.Position(token.NewFileSet())
	assert.False(t, ok)
}
