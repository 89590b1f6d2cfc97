package extract_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/humanbrowse/internal/extract"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Sample</title><style>body{color:red}</style></head>
<body>
  <nav><a href="/home">Home</a></nav>
  <article>
    <h1>The Heading</h1>
    <p>First paragraph with a <a href="https://example.com/one">link one</a>.</p>
    <p>Second paragraph mentioning the Needle Phrase right here.</p>
    <a href="/two">link two</a>
  </article>
  <footer><a href="/about">About</a></footer>
</body>
</html>`

func TestReadable_PrefersMainSelectors(t *testing.T) {
	result, err := extract.Readable(samplePage, 0)
	require.NoError(t, err)
	assert.Equal(t, "article", result.Source)
	assert.Contains(t, result.Text, "The Heading")
	assert.Contains(t, result.Text, "Needle Phrase")
	assert.NotContains(t, result.Text, "About")
	assert.False(t, result.Truncated)
}

func TestReadable_FallsBackToBody(t *testing.T) {
	html := `<html><body><script>var x=1;</script><nav>menu</nav><p>plain content</p></body></html>`
	result, err := extract.Readable(html, 0)
	require.NoError(t, err)
	assert.Equal(t, "readability", result.Source)
	assert.Equal(t, "plain content", result.Text)
	assert.NotContains(t, result.Text, "var x")
	assert.NotContains(t, result.Text, "menu")
}

func TestReadable_Truncation(t *testing.T) {
	html := "<html><body><main>" + strings.Repeat("abcde ", 100) + "</main></body></html>"
	result, err := extract.Readable(html, 20)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, 20, result.Chars)
	assert.Len(t, result.Text, 20)
}

func TestReadable_TruncationKeepsRuneBoundary(t *testing.T) {
	html := "<html><body><main>долголетие</main></body></html>"
	result, err := extract.Readable(html, 5)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, "долго", result.Text)
	assert.Equal(t, 5, result.Chars)
	assert.True(t, utf8.ValidString(result.Text))
}

func TestReadable_CharsCountRunes(t *testing.T) {
	html := "<html><body><main>五文字です</main></body></html>"
	result, err := extract.Readable(html, 0)
	require.NoError(t, err)
	assert.False(t, result.Truncated)
	assert.Equal(t, 5, result.Chars)
}

func TestSelector_Found(t *testing.T) {
	result, err := extract.Selector(samplePage, "h1", 0)
	require.NoError(t, err)
	assert.Equal(t, "The Heading", result.Text)
	assert.Equal(t, "h1", result.Source)
}

func TestSelector_Missing(t *testing.T) {
	result, err := extract.Selector(samplePage, "#nope", 0)
	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
	assert.Equal(t, 0, result.Chars)
}

func TestSelector_EmptyDelegatesToReadable(t *testing.T) {
	result, err := extract.Selector(samplePage, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "article", result.Source)
}

func TestEnumerateLinks_MainScope(t *testing.T) {
	result, err := extract.EnumerateLinks(samplePage, "main")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "link one", result.Links[0].Text)
	assert.Equal(t, "https://example.com/one", result.Links[0].Href)
	assert.Equal(t, "/two", result.Links[1].Href)
}

func TestEnumerateLinks_AllScope(t *testing.T) {
	result, err := extract.EnumerateLinks(samplePage, "all")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Count)
}

func TestFindQuote_Found(t *testing.T) {
	result, err := extract.FindQuote(samplePage, "needle phrase", 20, 0)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Contains(t, result.Context, "Needle Phrase")
	assert.LessOrEqual(t, len(result.Context), len("needle phrase")+40)
}

func TestFindQuote_MultibyteContextWindow(t *testing.T) {
	html := "<html><body><p>ааааа иголка ббббб</p></body></html>"
	result, err := extract.FindQuote(html, "иголка", 3, 0)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "аа иголка бб", result.Context)
	assert.True(t, utf8.ValidString(result.Context))
}

func TestFindQuote_NoMatch(t *testing.T) {
	result, err := extract.FindQuote(samplePage, "absent text", 20, 0)
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, "", result.Context)
}
