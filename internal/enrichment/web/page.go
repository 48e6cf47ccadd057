package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxBody bounds how much of a page is read.
const maxBody = 4 << 20

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
}

// link is an anchor found on a page.
type link struct {
	URL   string
	Label string
}

func (r *Retriever) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(body), nil
}

// PageText returns the visible text of an HTML document with whitespace collapsed.
func PageText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[atom.Lookup(name)] {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[atom.Lookup(name)] && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// pageLinks returns every anchor in doc resolved against base.
func pageLinks(base, doc string) []link {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		links []link
		cur   *link
		label strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken:
			tn, hasAttr := z.TagName()
			if atom.Lookup(tn) != atom.A || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if ref, err := url.Parse(strings.TrimSpace(string(val))); err == nil {
						cur = &link{URL: baseURL.ResolveReference(ref).String()}
						label.Reset()
					}
				}
				if !more {
					break
				}
			}
		case html.TextToken:
			if cur != nil {
				label.Write(z.Text())
				label.WriteByte(' ')
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			if atom.Lookup(tn) == atom.A && cur != nil {
				cur.Label = collapse(label.String())
				links = append(links, *cur)
				cur = nil
			}
		}
	}
}

// IsUnitLikeURL keeps handbook and unit pages and drops search and navigation pages.
func IsUnitLikeURL(raw string) bool {
	u := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(u, "http") {
		return false
	}
	for _, tok := range []string{"/search", "?q=", "?s=", "/news", "/events", "/about", "/contact", "/study-at"} {
		if strings.Contains(u, tok) {
			return false
		}
	}
	for _, tok := range []string{"/units/", "/unit/", "/subjects/", "/subject/", "/handbook/", "/course-handbook/", "unit"} {
		if strings.Contains(u, tok) {
			return true
		}
	}
	return false
}

// siteRoot returns scheme://host of raw, or raw without a trailing slash when it
// does not parse as an absolute URL.
func siteRoot(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
