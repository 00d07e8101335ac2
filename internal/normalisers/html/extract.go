// Package html extracts readable text from HTML pages so they can be
// indexed as knowledge base documents. Scripts, styles and the document
// head are dropped, block elements become line breaks and entities are decoded.
package html

import (
	"html"
	"regexp"
	"strings"
)

var (
	titleTag    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Tag       = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	metaTag     = regexp.MustCompile(`(?is)<meta\s[^>]*>`)
	metaName    = regexp.MustCompile(`(?is)\bname\s*=\s*["']([^"']*)["']`)
	metaContent = regexp.MustCompile(`(?is)\bcontent\s*=\s*["']([^"']*)["']`)
	comments    = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockClose  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|dd|dt)>`)
	blockOpen   = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|dd|dt)(\s[^>]*)?>`)
	lineBreaks  = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
	spaces      = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
)

// droppedBlocks hold no readable content. RE2 has no backreferences, so
// each element gets its own pattern.
var droppedBlocks = func() []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, tag := range []string{"head", "script", "style", "noscript", "svg", "nav", "footer"} {
		out = append(out, regexp.MustCompile(`(?is)<`+tag+`(\s[^>]*)?>.*?</`+tag+`\s*>`))
	}
	return out
}()

// Page is the text content of an HTML page.
type Page struct {
	// Title comes from <title>, then the first <h1>.
	Title string

	// Meta holds <meta name="..." content="..."> pairs with lowercased names.
	Meta map[string]string

	// Text is the visible text, one block per line.
	Text string
}

// Extract parses an HTML page.
func Extract(content string) Page {
	p := Page{Meta: meta(content)}
	if m := titleTag.FindStringSubmatch(content); m != nil {
		p.Title = clean(m[1])
	}
	if p.Title == "" {
		if m := h1Tag.FindStringSubmatch(content); m != nil {
			p.Title = clean(anyTag.ReplaceAllString(m[1], ""))
		}
	}
	p.Text = Strip(content)
	return p
}

// Strip removes markup and returns the visible text.
func Strip(content string) string {
	for _, re := range droppedBlocks {
		content = re.ReplaceAllString(content, "")
	}
	content = comments.ReplaceAllString(content, "")
	content = blockOpen.ReplaceAllString(content, "\n")
	content = blockClose.ReplaceAllString(content, "\n")
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	lines := strings.Split(content, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func meta(content string) map[string]string {
	var out map[string]string
	for _, tag := range metaTag.FindAllString(content, -1) {
		name := metaName.FindStringSubmatch(tag)
		value := metaContent.FindStringSubmatch(tag)
		if name == nil || value == nil {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[strings.ToLower(strings.TrimSpace(name[1]))] = clean(value[1])
	}
	return out
}

func clean(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
