// Package scraper provides helper functions for listing and comment extraction.
package scraper

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// FindMetaTag searches for a meta tag with the given property or name
func FindMetaTag(doc *goquery.Document, property, name string) string {
	var value string

	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		if value != "" {
			return // Already found
		}

		// Check property attribute
		if property != "" {
			if prop, exists := s.Attr("property"); exists && prop == property {
				if content, exists := s.Attr("content"); exists {
					value = strings.TrimSpace(content)
					return
				}
			}
		}

		// Check name attribute
		if name != "" {
			if n, exists := s.Attr("name"); exists && n == name {
				if content, exists := s.Attr("content"); exists {
					value = strings.TrimSpace(content)
					return
				}
			}
		}
	})

	return value
}

// CleanWhitespace collapses whitespace runs to a single space and trims.
func CleanWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func containsItemMarker(href string) bool {
	return strings.Contains(href, ItemLinkMarker)
}

// likesText keeps a like counter only when it carries a digit.
func likesText(text string) string {
	text = CleanWhitespace(text)
	if strings.IndexFunc(text, unicode.IsDigit) < 0 {
		return ""
	}
	return text
}

// ParseStaticListings reads listings from a search result snapshot using
// the fixed result-card class names.
func ParseStaticListings(snapshot string) ([]rawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, err
	}

	var raws []rawListing
	doc.Find(StaticItemSelector).Each(func(i int, s *goquery.Selection) {
		title := CleanWhitespace(s.Find(StaticTitleSelector).First().Text())
		if title == "" {
			return
		}
		link := s.Find(StaticLinkSelector).First()
		if link.Length() == 0 {
			link = s.Find(ItemLinkSelector).First()
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		raws = append(raws, rawListing{
			Href:        href,
			Title:       title,
			Author:      CleanWhitespace(strings.TrimPrefix(s.Find(StaticAuthorSelector).First().Text(), "@")),
			Likes:       likesText(s.Find(StaticLikesSelector).First().Text()),
			PublishTime: CleanWhitespace(strings.TrimPrefix(CleanWhitespace(s.Find(StaticTimeSelector).First().Text()), "·")),
		})
	})
	return raws, nil
}

// ScanChallengeMarkers re-checks the head of a snapshot for challenge
// keywords after a parse came up empty.
func ScanChallengeMarkers(snapshot string, detector *ChallengeDetector) (string, bool) {
	head := Truncate(snapshot, StaticChallengeScan)
	if detector != nil {
		if ind, ok := detector.MatchText(head); ok {
			return ind, true
		}
	}
	if strings.Contains(head, StaticChallengeMarker) {
		return StaticChallengeMarker, true
	}
	return "", false
}
