// Package record defines the normalized article record produced by a fetch
// and the output formats it can be serialized to.
package record

import (
	"fmt"
	"strings"
	"time"
)

// SourcePMC tags records fetched from PubMed Central.
const SourcePMC = "PMC"

// Format selects how a fetched article is written to disk.
type Format string

const (
	// FormatJSON stores the structured record: metadata, raw XML, and
	// optionally the plain-text rendering. Preferred format.
	FormatJSON Format = "json"
	// FormatXML stores the raw JATS XML as returned by the server.
	FormatXML Format = "xml"
	// FormatText stores only the plain-text rendering (tags stripped).
	FormatText Format = "txt"
)

// ParseFormat parses a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatXML:
		return FormatXML, nil
	case FormatText:
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (expected json, xml, or txt)", s)
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// PubDate is the nested publication date kept for compatibility with
// external tooling that expects pub_date.year.
type PubDate struct {
	Year  string `json:"year"`
	Month string `json:"month,omitempty"`
	Day   string `json:"day,omitempty"`
}

// Metadata holds the bibliographic fields extracted from the article XML.
// Every field is optional; extraction is conservative and an empty Metadata
// is valid (the raw XML is still kept on the record).
type Metadata struct {
	Title            string   `json:"title,omitempty"`
	JournalTitle     string   `json:"journal_title,omitempty"`
	JournalNLMTA     string   `json:"journal_nlm_ta,omitempty"`
	JournalISOAbbrev string   `json:"journal_iso_abbrev,omitempty"`
	Journal          string   `json:"journal,omitempty"`
	PMID             string   `json:"pmid,omitempty"`
	PMCID            string   `json:"pmcid,omitempty"`
	DOI              string   `json:"doi,omitempty"`
	Year             string   `json:"year,omitempty"`
	Month            string   `json:"month,omitempty"`
	Day              string   `json:"day,omitempty"`
	PubDate          *PubDate `json:"pub_date,omitempty"`
	Authors          []string `json:"authors,omitempty"`
	Abstract         string   `json:"abstract,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
}

// Record is the normalized result of fetching one article. It is built once
// per successful fetch, written immediately, and never mutated afterwards.
type Record struct {
	// PMCID is the display identifier, e.g. "PMC9876543".
	PMCID string `json:"pmcid"`
	// Source identifies the origin system; always SourcePMC.
	Source string `json:"source"`
	// DownloadDate is the retrieval time, not the publication time.
	DownloadDate time.Time `json:"download_date"`
	Metadata     Metadata  `json:"metadata"`
	// XML is the raw JATS payload as fetched.
	XML string `json:"xml"`
	// Text is the plain-text rendering of XML. Present only when requested.
	Text string `json:"text,omitempty"`
}

// DisplayID normalizes a PMC identifier to its display form with the
// "PMC" prefix. The search endpoint returns bare numeric IDs.
func DisplayID(id string) string {
	if strings.HasPrefix(id, "PMC") {
		return id
	}
	return "PMC" + id
}

// NumericID strips the "PMC" prefix, yielding the raw ID the fetch
// endpoint expects.
func NumericID(id string) string {
	return strings.TrimPrefix(id, "PMC")
}
