package feedsurface

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

const rssVersion = "2.0"

// RenderRSS hand-writes RSS 2.0 XML, the same bytes.Buffer +
// encoding/xml.EscapeText technique the teacher's feed generator uses,
// rather than a struct-based xml.Marshal.
func RenderRSS(feedURL string, meta Meta, entries []Entry) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<rss version="` + rssVersion + `" xmlns:atom="http://www.w3.org/2005/Atom">` + "\n")
	buf.WriteString("  <channel>\n")

	if err := writeElement(&buf, "title", meta.Name, "    "); err != nil {
		return "", err
	}
	if err := writeElement(&buf, "link", feedURL, "    "); err != nil {
		return "", err
	}
	if err := writeElement(&buf, "description", fmt.Sprintf("Entries extracted from %s", meta.Name), "    "); err != nil {
		return "", err
	}
	buf.WriteString(fmt.Sprintf(`    <atom:link rel="self" type="application/rss+xml" href=%q/>`, feedURL) + "\n")

	buildDate := time.Now().UTC()
	if meta.LastUpdated != nil {
		buildDate = *meta.LastUpdated
	}
	if err := writeElement(&buf, "lastBuildDate", buildDate.Format(time.RFC1123Z), "    "); err != nil {
		return "", err
	}
	if err := writeElement(&buf, "generator", "feedgen", "    "); err != nil {
		return "", err
	}

	for _, e := range entries {
		if err := writeItem(&buf, meta.Name, e); err != nil {
			return "", err
		}
	}

	buf.WriteString("  </channel>\n")
	buf.WriteString("</rss>\n")
	return buf.String(), nil
}

func writeItem(buf *bytes.Buffer, feedName string, e Entry) error {
	buf.WriteString("    <item>\n")
	if err := writeElement(buf, "title", e.Title, "      "); err != nil {
		return err
	}
	if err := writeElement(buf, "link", e.URL, "      "); err != nil {
		return err
	}
	if err := writeElement(buf, "description", e.Description, "      "); err != nil {
		return err
	}
	buf.WriteString(fmt.Sprintf(`      <guid isPermaLink="false">feedgen/%s/%s</guid>`, feedName, e.ID) + "\n")
	if e.Author != "" {
		if err := writeElement(buf, "author", e.Author, "      "); err != nil {
			return err
		}
	}
	if e.Published != nil {
		if err := writeElement(buf, "pubDate", e.Published.Format(time.RFC1123Z), "      "); err != nil {
			return err
		}
	}
	buf.WriteString("    </item>\n")
	return nil
}

// writeElement writes <tag>content</tag> with content XML-escaped, and is a
// no-op when content is empty - the same pattern the teacher's generator
// uses to omit empty fields rather than rendering placeholder text.
func writeElement(buf *bytes.Buffer, tag, content, indent string) error {
	if content == "" {
		return nil
	}
	buf.WriteString(indent + "<" + tag + ">")
	if err := xml.EscapeText(buf, []byte(content)); err != nil {
		return fmt.Errorf("could not escape %s content: %w", tag, err)
	}
	buf.WriteString("</" + tag + ">\n")
	return nil
}
