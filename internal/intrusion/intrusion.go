// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package intrusion performs cheap, signature-based screening of inbound
// requests for SQL injection, cross-site scripting and path traversal.
// Detection is pattern matching only; nothing is parsed semantically.
package intrusion

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"regexp"
)

// ThreatType labels the detector that matched.
type ThreatType string

const (
	ThreatNone          ThreatType = ""
	ThreatSQLi          ThreatType = "SQLi"
	ThreatXSS           ThreatType = "XSS"
	ThreatPathTraversal ThreatType = "PathTraversal"
)

// Verdict is the request-scoped result of a scan.
type Verdict struct {
	Detected   bool
	ThreatType ThreatType
}

// MaxBodyScan caps how much of a request body is inspected.
const MaxBodyScan = 64 << 10

var (
	sqliPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bunion\b[\s\S]{0,100}?\bselect\b`),
		// Quoted boolean tautologies: ' OR '1'='1, " or 1=1, ' AND 'a'='a
		regexp.MustCompile(`(?i)['"]\s*\b(or|and)\b\s+['"]?[\w]+['"]?\s*=\s*['"]?[\w]+`),
		// Bare tautologies: OR 1=1
		regexp.MustCompile(`(?i)\bor\b\s+(\d+)\s*=\s*(\d+)`),
		// Quote followed by a comment or statement terminator.
		regexp.MustCompile(`['"]\s*(--|#|/\*|;)`),
		regexp.MustCompile(`;\s*--`),
		// Stacked statements.
		regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|truncate|alter|create|exec)\b`),
		// Time-based blind injection.
		regexp.MustCompile(`(?i)\b(sleep|benchmark|pg_sleep)\s*\(`),
		regexp.MustCompile(`(?i)\bwaitfor\s+delay\b`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)vbscript\s*:`),
		regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|focus|blur|submit)\s*=`),
		regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`),
	}

	traversalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`\.\.\\`),
		// Encoded dots that survived one round of decoding.
		regexp.MustCompile(`(?i)%2e%2e`),
		regexp.MustCompile(`(?i)%00`),
		// Control characters (NUL through US, and DEL).
		regexp.MustCompile(`[\x00-\x1f\x7f]`),
	}
)

// Detector scans text against all signature families in a fixed order:
// SQL injection, then XSS, then path traversal.
type Detector struct {
	scanBody bool
}

// New creates a Detector. When scanBody is true, ScanRequest also inspects
// request bodies with the SQL injection and XSS detectors.
func New(scanBody bool) *Detector {
	return &Detector{scanBody: scanBody}
}

// Scan checks text with every detector and reports the first match.
func (d *Detector) Scan(text string) Verdict {
	switch {
	case matchAny(sqliPatterns, text):
		return Verdict{Detected: true, ThreatType: ThreatSQLi}
	case matchAny(xssPatterns, text):
		return Verdict{Detected: true, ThreatType: ThreatXSS}
	case matchAny(traversalPatterns, text):
		return Verdict{Detected: true, ThreatType: ThreatPathTraversal}
	}
	return Verdict{}
}

// scanContent checks text with the SQL injection and XSS detectors only.
func (d *Detector) scanContent(text string) Verdict {
	switch {
	case matchAny(sqliPatterns, text):
		return Verdict{Detected: true, ThreatType: ThreatSQLi}
	case matchAny(xssPatterns, text):
		return Verdict{Detected: true, ThreatType: ThreatXSS}
	}
	return Verdict{}
}

// ScanRequest scans the decoded path and query of r, and its body when
// body scanning is enabled. The body is restored so downstream handlers can
// still read it.
func (d *Detector) ScanRequest(r *http.Request) (Verdict, error) {
	if v := d.Scan(r.URL.Path); v.Detected {
		return v, nil
	}

	if raw := r.URL.RawQuery; raw != "" {
		query, err := url.QueryUnescape(raw)
		if err != nil {
			query = raw
		}
		if v := d.Scan(query); v.Detected {
			return v, nil
		}
	}

	if !d.scanBody || r.Body == nil || r.Body == http.NoBody {
		return Verdict{}, nil
	}

	head, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyScan))
	if err != nil {
		return Verdict{}, err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	return d.scanContent(string(head)), nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
