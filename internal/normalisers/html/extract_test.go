package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	page := Extract(`<!DOCTYPE html>
<html>
<head>
  <title>Guide des tailles &amp; coupes</title>
  <meta name="Category" content="sizing">
  <meta charset="utf-8">
  <style>body { color: red; }</style>
</head>
<body>
  <nav><a href="/">Accueil</a></nav>
  <h1>Tailles</h1>
  <p>Mesurez votre <b>tour de poitrine</b>.</p>
  <!-- hidden -->
  <ul><li>S : 86-90</li><li>M : 94-98</li></ul>
  <script>var x = "<p>no</p>";</script>
</body>
</html>`)

	assert.Equal(t, "Guide des tailles & coupes", page.Title)
	assert.Equal(t, map[string]string{"category": "sizing"}, page.Meta)
	assert.Equal(t, "Tailles\nMesurez votre tour de poitrine.\nS : 86-90\nM : 94-98", page.Text)
}

func TestExtract_TitleFromHeading(t *testing.T) {
	page := Extract(`<body><h1 class="x">Retours <em>gratuits</em></h1><p>30 jours.</p></body>`)

	assert.Equal(t, "Retours gratuits", page.Title)
	assert.Nil(t, page.Meta)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"line breaks", "a<br>b<br/>c<hr />d", "a\nb\nc\nd"},
		{"entities", "caf&eacute; &lt;3", "café <3"},
		{"collapses spaces", "<p>  a \t b  </p>", "a b"},
		{"empty", "<div><span></span></div>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.in))
		})
	}
}
