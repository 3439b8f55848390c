// Package parser extracts job posting fields from fetched listing pages.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// Extractor parses listing and search-result pages. It is stateless; the
// selectors follow the site's current markup.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract pulls the listing fields out of a job posting page. Missing
// elements yield empty strings rather than errors; the posted date falls
// back to now when the page carries no usable relative date.
func (e *Extractor) Extract(content []byte, now time.Time) (ingest.ParsedFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return ingest.ParsedFields{}, fmt.Errorf("parse listing html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1.jobsearch-JobInfoHeader-title").First().Text())
	description := cleanse(joinedStrings(doc.Find("div.jobsearch-jobDescriptionText").First()))
	company := firstChildText(doc.Find("div.jobsearch-InlineCompanyRating").First())
	location := subtitleLocation(doc.Find("div.jobsearch-JobInfoHeader-subtitle").First())
	posted := PostedAt(strippedStrings(doc.Find("div.jobsearch-JobMetadataFooter").First()), now)

	return ingest.ParsedFields{
		Title:       &title,
		CompanyName: &company,
		Location:    &location,
		Description: &description,
		PostedAt:    &posted,
	}, nil
}

// SearchLinks returns the hrefs of the result anchors on a search page.
func (e *Extractor) SearchLinks(content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse search html: %w", err)
	}
	var links []string
	doc.Find("a.result").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

// joinedStrings collects every descendant text node, trimmed, joined with
// newlines. Multi-paragraph descriptions keep their line structure.
func joinedStrings(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// strippedStrings is joinedStrings without the joining.
func strippedStrings(sel *goquery.Selection) []string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return parts
}

// firstChildText returns the first non-empty text among a node's direct
// children. The company block nests its name next to rating widgets.
func firstChildText(sel *goquery.Selection) string {
	var out string
	sel.Contents().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		if text := strings.TrimSpace(child.Text()); text != "" {
			out = text
			return false
		}
		return true
	})
	return out
}

// subtitleLocation joins the last two pieces of the header subtitle, which
// carry the location and an optional remote/hybrid qualifier.
func subtitleLocation(sel *goquery.Selection) string {
	var texts []string
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(child.Text()))
	})
	switch {
	case len(texts) >= 2:
		loc := texts[len(texts)-2]
		if last := texts[len(texts)-1]; last != "" {
			if loc == "" {
				return last
			}
			return loc + "/" + last
		}
		return loc
	case len(texts) == 1:
		return texts[0]
	default:
		return ""
	}
}

// cleanse drops the BOM characters some description blocks embed mid-text.
func cleanse(s string) string {
	return strings.ReplaceAll(s, "\ufeff", "")
}
