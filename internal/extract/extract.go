// Package extract pulls structured content out of page HTML: main-content
// text, link lists and quote lookups. It operates on serialized HTML so the
// engine stays decoupled from the live browser.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/aretw0/humanbrowse/pkg/ports"
)

// MainSelectors are tried in order to find the main content region.
var MainSelectors = []string{"article", "main", "[role='main']", "#content"}

// noiseSelectors are stripped before falling back to whole-body text.
var noiseSelectors = []string{"script", "style", "noscript", "nav", "header", "footer", "aside"}

// Text is a trimmed text capture.
type Text struct {
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
	Chars     int    `json:"chars"`
	Source    string `json:"source"`
}

// Map renders the capture as a note content payload.
func (t Text) Map() map[string]any {
	return map[string]any{
		"text":      t.Text,
		"truncated": t.Truncated,
		"chars":     t.Chars,
		"source":    t.Source,
	}
}

// Links is an ordered link enumeration.
type Links struct {
	Scope string       `json:"scope"`
	Count int          `json:"count"`
	Links []ports.Link `json:"links"`
}

// Map renders the enumeration as a note content payload.
func (l Links) Map() map[string]any {
	return map[string]any{
		"scope": l.Scope,
		"count": l.Count,
		"links": l.Links,
	}
}

// Quote is a matched excerpt with surrounding context.
type Quote struct {
	Query        string `json:"query"`
	Found        bool   `json:"found"`
	Context      string `json:"context"`
	ContextChars int    `json:"context_chars"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// Map renders the quote as a note content payload.
func (q Quote) Map() map[string]any {
	return map[string]any{
		"query":         q.Query,
		"found":         q.Found,
		"context":       q.Context,
		"context_chars": q.ContextChars,
		"truncated":     q.Truncated,
	}
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// normalize collapses whitespace runs so selector text, body text and quote
// windows compare consistently.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// trim caps the text at maxChars characters. Counting and slicing happen in
// runes so a multi-byte character is never split mid-sequence.
func trim(text string, maxChars int) Text {
	cleaned := strings.TrimSpace(text)
	runes := []rune(cleaned)
	truncated := false
	if maxChars > 0 && len(runes) > maxChars {
		runes = runes[:maxChars]
		cleaned = string(runes)
		truncated = true
	}
	return Text{Text: cleaned, Truncated: truncated, Chars: len(runes)}
}

// Selector extracts the text of the first element matching selector. With an
// empty selector it behaves like Readable.
func Selector(html, selector string, maxChars int) (Text, error) {
	if selector == "" {
		return Readable(html, maxChars)
	}
	doc, err := parse(html)
	if err != nil {
		return Text{}, err
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		result := trim("", maxChars)
		result.Source = selector
		return result, nil
	}
	result := trim(normalize(sel.First().Text()), maxChars)
	result.Source = selector
	return result, nil
}

// Readable extracts the main content of the page: the first non-empty match
// of MainSelectors, falling back to the whole body with boilerplate regions
// stripped.
func Readable(html string, maxChars int) (Text, error) {
	doc, err := parse(html)
	if err != nil {
		return Text{}, err
	}

	for _, selector := range MainSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		text := normalize(sel.First().Text())
		if text == "" {
			continue
		}
		result := trim(text, maxChars)
		result.Source = selector
		return result, nil
	}

	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	body := doc.Find("body")
	text := normalize(body.Text())
	if body.Length() == 0 {
		text = normalize(doc.Text())
	}
	result := trim(text, maxChars)
	result.Source = "readability"
	return result, nil
}

// EnumerateLinks returns every anchor with an href, ordered as they appear.
// Scope "main" restricts the walk to the main content region when one
// exists; any other scope (or no main region) enumerates the whole page.
func EnumerateLinks(html, scope string) (Links, error) {
	doc, err := parse(html)
	if err != nil {
		return Links{}, err
	}

	root := doc.Selection
	if scope == "main" {
		for _, selector := range MainSelectors {
			if sel := doc.Find(selector); sel.Length() > 0 {
				root = sel.First()
				break
			}
		}
	}

	links := []ports.Link{}
	root.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, ports.Link{
			Text: normalize(a.Text()),
			Href: href,
		})
	})
	return Links{Scope: scope, Count: len(links), Links: links}, nil
}

// FindQuote searches the page text for query (case-insensitive) and returns
// the match with contextChars of surrounding text on each side.
func FindQuote(html, query string, contextChars, maxChars int) (Quote, error) {
	doc, err := parse(html)
	if err != nil {
		return Quote{}, err
	}
	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	text := normalize(doc.Find("body").Text())
	if text == "" {
		text = normalize(doc.Text())
	}

	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx < 0 {
		return Quote{Query: query, Found: false, ContextChars: contextChars}, nil
	}

	// The context window is measured in characters. ToLower maps rune to
	// rune, so rune offsets in the lowered text line up with the original.
	textRunes := []rune(text)
	runeIdx := utf8.RuneCountInString(lower[:idx])
	start := max(0, runeIdx-contextChars)
	end := min(len(textRunes), runeIdx+utf8.RuneCountInString(query)+contextChars)
	window := string(textRunes[start:end])

	limit := end - start
	if maxChars > 0 && maxChars < limit {
		limit = maxChars
	}
	trimmed := trim(window, limit)
	return Quote{
		Query:        query,
		Found:        true,
		Context:      trimmed.Text,
		ContextChars: contextChars,
		Truncated:    trimmed.Truncated,
	}, nil
}
