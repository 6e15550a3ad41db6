package reddit

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnknownFeed is returned for XML that is neither Atom nor RSS 2.0
var ErrUnknownFeed = errors.New("unknown feed format")

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Category struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Content string `xml:"content"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Author      string `xml:"author"`
	Category    string `xml:"category"`
}

// ParseFeed parses an Atom or legacy RSS 2.0 subreddit feed
func ParseFeed(data []byte, subreddit string) ([]FeedEntry, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}

	switch root {
	case "feed":
		var f atomFeed
		if err := xml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse atom feed: %w", err)
		}
		entries := make([]FeedEntry, 0, len(f.Entries))
		for _, e := range f.Entries {
			body, media := htmlToText(e.Content)
			sub := e.Category.Term
			if sub == "" {
				sub = subreddit
			}
			published := parseTime(e.Published)
			if published.IsZero() {
				published = parseTime(e.Updated)
			}
			entries = append(entries, FeedEntry{
				ID:        strings.TrimSpace(e.ID),
				Title:     strings.TrimSpace(e.Title),
				Body:      body,
				Author:    trimUser(e.Author.Name),
				Published: published,
				Link:      e.Link.Href,
				Subreddit: sub,
				HasMedia:  media,
			})
		}
		return entries, nil

	case "rss":
		var f rssFeed
		if err := xml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse rss feed: %w", err)
		}
		entries := make([]FeedEntry, 0, len(f.Channel.Items))
		for _, it := range f.Channel.Items {
			body, media := htmlToText(it.Description)
			id := strings.TrimSpace(it.GUID)
			if id == "" {
				id = strings.TrimSpace(it.Link)
			}
			author := it.Creator
			if author == "" {
				author = it.Author
			}
			sub := it.Category
			if sub == "" {
				sub = subreddit
			}
			entries = append(entries, FeedEntry{
				ID:        id,
				Title:     strings.TrimSpace(it.Title),
				Body:      body,
				Author:    trimUser(author),
				Published: parseTime(it.PubDate),
				Link:      strings.TrimSpace(it.Link),
				Subreddit: sub,
				HasMedia:  media,
			})
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("%w: <%s>", ErrUnknownFeed, root)
	}
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownFeed, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// htmlToText reduces feed HTML to plain text.
// Reddit wraps the selftext in div.md followed by "submitted by" links.
func htmlToText(content string) (string, bool) {
	if strings.TrimSpace(content) == "" {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content), false
	}

	hasMedia := doc.Find("img, video").Length() > 0

	sel := doc.Find("div.md")
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	var parts []string
	sel.Find("p, li, pre, blockquote, h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		text := strings.TrimSpace(sel.Text())
		if i := strings.Index(text, "submitted by"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		return collapseSpace(text), hasMedia
	}
	return collapseSpace(strings.Join(parts, "\n")), hasMedia
}

func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func trimUser(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/u/")
	return strings.TrimPrefix(name, "u/")
}
