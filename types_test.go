package textmate

import (
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token Token
		want  string
	}{
		{"plain", tok("p", "source.css"), `"p" source.css`},
		{"nested", tok("{", "source.css", "meta.property-list.css"), `"{" source.css meta.property-list.css`},
		{"quoted", tok(`"a"`, "source.css", "string.quoted.double.css"), `"\"a\"" source.css string.quoted.double.css`},
		{"empty", tok("", "source.css"), `"" source.css`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.token.String())
		})
	}
}

func TestTokenHasScope(t *testing.T) {
	t.Parallel()

	tk := tok("p", "source.css", "meta.selector.css", "entity.name.tag.css")
	assert.True(t, tk.HasScope("meta.selector.css"))
	assert.False(t, tk.HasScope("meta.selector"))
}

func TestTokenJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(tok("a", "source.css"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"a","scopes":["source.css"]}`, string(data))
}

func TestLineResultText(t *testing.T) {
	t.Parallel()

	res := LineResult{Tokens: []Token{tok("a ", "s"), tok(">", "s", "k"), tok(" b", "s")}}
	assert.Equal(t, "a > b", res.Text())
	assert.Empty(t, LineResult{}.Text())
}
