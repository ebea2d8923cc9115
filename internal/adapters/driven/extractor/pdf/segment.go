package pdf

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
)

// headingLine matches the structural headings of Spanish legal texts.
var headingLine = regexp.MustCompile(`^(Art[íi]culo|ART[ÍI]CULO|Art\.|Cap[íi]tulo|CAP[ÍI]TULO|T[íi]tulo|T[ÍI]TULO|Secci[óo]n|SECCI[ÓO]N|Disposici[óo]n|DISPOSICI[ÓO]N|Anexo|ANEXO|Pre[áa]mbulo|PRE[ÁA]MBULO)(\s|$)`)

const maxTitleRunes = 200

// segment splits page texts into sections. A heading line starts a new
// section that may continue across pages; text outside any heading is
// grouped per page. Sections shorter than cfg.MinSectionLength are dropped
// and untitled page sections shorter than cfg.MergeBelow are appended to
// the previous section.
func segment(pages []string, cfg Config) []domain.Section {
	type draft struct {
		title   string
		page    int
		heading bool
		lines   []string
	}

	var drafts []*draft
	var current *draft

	for i, text := range pages {
		pageNr := i + 1
		if current != nil && !current.heading {
			current = nil
		}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if headingLine.MatchString(line) {
				current = &draft{title: truncateRunes(line, maxTitleRunes), page: pageNr, heading: true}
				drafts = append(drafts, current)
			} else if current == nil {
				current = &draft{title: "Página " + strconv.Itoa(pageNr), page: pageNr}
				drafts = append(drafts, current)
			}
			current.lines = append(current.lines, line)
		}
	}

	var sections []domain.Section
	for _, d := range drafts {
		text := strings.Join(d.lines, "\n")
		length := len([]rune(text))

		if !d.heading && length < cfg.MergeBelow && len(sections) > 0 {
			last := &sections[len(sections)-1]
			last.Text += "\n\n" + text
			continue
		}
		if length < cfg.MinSectionLength {
			continue
		}
		sections = append(sections, domain.Section{
			ID:    len(sections) + 1,
			Title: d.title,
			Text:  text,
			Page:  d.page,
		})
	}

	return sections
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
