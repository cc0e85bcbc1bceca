package models

import (
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/samber/mo"
)

const labelMaxLen = 30

// FormatDuration renders a job duration as "1m 5s" or "42s". Missing or zero
// durations render as "-".
func FormatDuration(seconds mo.Option[int]) string {
	s, ok := seconds.Get()
	if !ok || s <= 0 {
		return "-"
	}
	m := s / 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// MangaLabel is the short human name of a job: the manga name when known,
// otherwise the target URL path, otherwise the page range.
func MangaLabel(j CrawlJob) string {
	if name := j.MangaName.OrEmpty(); name != "" {
		return name
	}
	if raw := j.MangaURL.OrEmpty(); raw != "" {
		u, err := url.Parse(raw)
		if err == nil && u.Scheme != "" && u.Host != "" {
			path := u.EscapedPath()
			if path == "" {
				path = "/"
			}
			if utf8.RuneCountInString(path) > labelMaxLen {
				r := []rune(path)
				return "..." + string(r[len(r)-(labelMaxLen-3):])
			}
			return path
		}
		if utf8.RuneCountInString(raw) > labelMaxLen {
			return string([]rune(raw)[:labelMaxLen-3]) + "..."
		}
		return raw
	}

	end := "?"
	if e, ok := j.EndPage.Get(); ok {
		end = fmt.Sprint(e)
	}
	return fmt.Sprintf("Pages %d-%s", j.StartPage.OrElse(1), end)
}
