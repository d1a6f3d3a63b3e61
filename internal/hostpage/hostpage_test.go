package hostpage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorSelector(t *testing.T) {
	assert.Equal(t, "a.fill-cell.wd-variable-name.md-gtm-theme", DefaultSelectors().AnchorSelector())
	assert.Equal(t, "a.x", Selectors{AnchorClasses: []string{" x ", ""}}.AnchorSelector())
	assert.Equal(t, "a", Selectors{}.AnchorSelector())
}
