package pmc

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"github.com/melhzy/litfetch/internal/record"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripTags removes markup tags from XML text and collapses whitespace,
// yielding the plain-text rendering stored in txt and json outputs.
func StripTags(xmlText string) string {
	text := tagPattern.ReplaceAllString(xmlText, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// innerText captures an element's inner XML so nested markup
// (italics, math, etc.) can be flattened to text.
type innerText struct {
	Raw string `xml:",innerxml"`
}

func (t innerText) text() string {
	return StripTags(t.Raw)
}

// jatsArticle mirrors the JATS front matter fields the metadata
// extraction cares about.
type jatsArticle struct {
	Front *struct {
		JournalMeta *struct {
			TitleGroup *struct {
				Title innerText `xml:"journal-title"`
			} `xml:"journal-title-group"`
			IDs []struct {
				Type  string `xml:"journal-id-type,attr"`
				Value string `xml:",chardata"`
			} `xml:"journal-id"`
		} `xml:"journal-meta"`
		ArticleMeta *struct {
			IDs []struct {
				Type  string `xml:"pub-id-type,attr"`
				Value string `xml:",chardata"`
			} `xml:"article-id"`
			TitleGroup *struct {
				Title innerText `xml:"article-title"`
			} `xml:"title-group"`
			PubDates []struct {
				Type  string `xml:"pub-type,attr"`
				Year  string `xml:"year"`
				Month string `xml:"month"`
				Day   string `xml:"day"`
			} `xml:"pub-date"`
			ContribGroups []struct {
				Contribs []struct {
					Type string `xml:"contrib-type,attr"`
					Name *struct {
						Surname  string `xml:"surname"`
						Given    string `xml:"given-names"`
						Initials string `xml:"initials,attr"`
					} `xml:"name"`
				} `xml:"contrib"`
			} `xml:"contrib-group"`
			Abstract *innerText `xml:"abstract"`
			KwdGroups []struct {
				Kwds []innerText `xml:"kwd"`
			} `xml:"kwd-group"`
		} `xml:"article-meta"`
	} `xml:"front"`
}

// rootElement returns the local name of the document's root element and
// whether the whole document is well-formed XML.
func rootElement(xmlText string) (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(xmlText))
	var root string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return root, root != ""
		}
		if err != nil {
			return "", false
		}
		if start, ok := tok.(xml.StartElement); ok && root == "" {
			root = start.Name.Local
		}
	}
}

// unavailableReason checks for the <pmc-articleset><error> shape PMC
// returns when an article has no retrievable full text. The second result
// is true when that shape was found.
func unavailableReason(xmlText string) (string, bool) {
	root, ok := rootElement(xmlText)
	if !ok || root != "pmc-articleset" {
		return "", false
	}
	var set struct {
		Error *struct {
			Text string `xml:",chardata"`
		} `xml:"error"`
	}
	if err := xml.Unmarshal([]byte(xmlText), &set); err != nil || set.Error == nil {
		return "", false
	}
	return strings.TrimSpace(set.Error.Text), true
}

// ExtractMetadata pulls bibliographic metadata out of a PMC article
// document. It is intentionally conservative: on unparseable or
// unexpectedly shaped input it returns whatever was extracted so far
// (possibly an empty Metadata) and the caller still has the raw XML.
func ExtractMetadata(xmlText string) record.Metadata {
	var md record.Metadata

	root, ok := rootElement(xmlText)
	if !ok {
		return md
	}

	var art jatsArticle
	if root == "article" {
		if err := xml.Unmarshal([]byte(xmlText), &art); err != nil {
			return md
		}
	} else {
		// Usually <pmc-articleset> wrapping one <article>.
		var set struct {
			Article *jatsArticle `xml:"article"`
		}
		if err := xml.Unmarshal([]byte(xmlText), &set); err != nil || set.Article == nil {
			return md
		}
		art = *set.Article
	}

	if art.Front == nil {
		return md
	}

	if jm := art.Front.JournalMeta; jm != nil {
		if jm.TitleGroup != nil {
			md.JournalTitle = jm.TitleGroup.Title.text()
		}
		for _, jid := range jm.IDs {
			value := strings.TrimSpace(jid.Value)
			switch jid.Type {
			case "nlm-ta":
				md.JournalNLMTA = value
			case "iso-abbrev":
				md.JournalISOAbbrev = value
			}
		}
	}

	// Generic journal alias for compatibility with external tooling.
	switch {
	case md.JournalTitle != "":
		md.Journal = md.JournalTitle
	case md.JournalISOAbbrev != "":
		md.Journal = md.JournalISOAbbrev
	case md.JournalNLMTA != "":
		md.Journal = md.JournalNLMTA
	}

	am := art.Front.ArticleMeta
	if am == nil {
		return md
	}

	for _, aid := range am.IDs {
		value := strings.TrimSpace(aid.Value)
		switch aid.Type {
		case "pmid":
			md.PMID = value
		case "pmcid":
			md.PMCID = value
		case "doi":
			md.DOI = value
		}
	}

	if am.TitleGroup != nil {
		md.Title = am.TitleGroup.Title.text()
	}

	// Prefer the epub date, fall back to the collection year.
	for _, pd := range am.PubDates {
		if pd.Type != "epub" {
			continue
		}
		md.Year = strings.TrimSpace(pd.Year)
		md.Month = strings.TrimSpace(pd.Month)
		md.Day = strings.TrimSpace(pd.Day)
		break
	}
	if md.Year == "" {
		for _, pd := range am.PubDates {
			if pd.Type == "collection" {
				md.Year = strings.TrimSpace(pd.Year)
				break
			}
		}
	}
	if md.Year != "" {
		md.PubDate = &record.PubDate{Year: md.Year, Month: md.Month, Day: md.Day}
	}

	for _, cg := range am.ContribGroups {
		for _, contrib := range cg.Contribs {
			if contrib.Type != "author" || contrib.Name == nil {
				continue
			}
			surname := strings.TrimSpace(contrib.Name.Surname)
			given := strings.TrimSpace(contrib.Name.Given)
			initials := strings.TrimSpace(contrib.Name.Initials)
			var full string
			switch {
			case given != "":
				full = strings.TrimSpace(surname + " " + given)
			case initials != "":
				full = strings.TrimSpace(surname + " " + initials)
			default:
				full = surname
			}
			if full != "" {
				md.Authors = append(md.Authors, full)
			}
		}
	}

	if am.Abstract != nil {
		md.Abstract = am.Abstract.text()
	}

	for _, kg := range am.KwdGroups {
		for _, kwd := range kg.Kwds {
			if text := kwd.text(); text != "" {
				md.Keywords = append(md.Keywords, text)
			}
		}
	}

	return md
}
