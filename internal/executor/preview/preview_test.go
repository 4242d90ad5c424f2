package preview_test

import (
	"testing"

	"github.com/sakif/snippet-runner/internal/executor"
	"github.com/sakif/snippet-runner/internal/executor/preview"
	"github.com/stretchr/testify/assert"
)

func TestRenderer_Run(t *testing.T) {
	r := preview.New()

	res := r.Run("<b>hi</b>")
	assert.Equal(t, executor.KindPreview, res.Kind)
	assert.Equal(t, "<b>hi</b>", res.Content)
	assert.False(t, res.IsError)

	markup := "<style>p { color: red }</style>\n<script>alert(1)</script><p>x</p>"
	assert.Equal(t, markup, r.Run(markup).Content)
}
