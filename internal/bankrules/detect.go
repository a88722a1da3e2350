package bankrules

import (
	"regexp"
	"strings"
)

// fingerprint ties an institution to the strings and patterns that identify
// it in extracted text. Checked in declaration order; first match wins.
type fingerprint struct {
	institution InstitutionID
	phrases     []string
	patterns    []*regexp.Regexp
}

// Bank RFCs (tax IDs) printed on every statement are the most reliable
// fingerprint; header phrases cover statements where the RFC block was not
// extracted cleanly.
var fingerprints = []fingerprint{
	{
		institution: BBVA,
		phrases:     []string{"BBVA MEXICO", "BBVA BANCOMER", "bbva.mx"},
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\bBBA830831LJ2\b`)},
	},
	{
		institution: Santander,
		phrases:     []string{"BANCO SANTANDER", "SANTANDER MEXICO", "santander.com.mx"},
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\bBSM970519DU8\b`)},
	},
	{
		institution: Banorte,
		phrases:     []string{"BANCO MERCANTIL DEL NORTE", "BANORTE", "banorte.com"},
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\bBMN930209927\b`)},
	},
	{
		institution: Banamex,
		phrases:     []string{"BANCO NACIONAL DE MEXICO", "CITIBANAMEX", "BANAMEX"},
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\bBNM840515VB1\b`)},
	},
	{
		institution: HSBC,
		phrases:     []string{"HSBC MEXICO", "hsbc.com.mx"},
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\bHMI950125KG8\b`)},
	},
	{
		institution: Scotiabank,
		phrases:     []string{"SCOTIABANK INVERLAT", "SCOTIABANK", "scotiabank.com.mx"},
		patterns:    []*regexp.Regexp{regexp.MustCompile(`\bSIN9412025I4\b`)},
	},
}

// Detect scans a text sample (typically the first pages of a statement) for
// institution fingerprints. Absence of a match is not an error: it routes
// the document to the generic heuristics.
func Detect(sample string) (InstitutionID, bool) {
	upper := strings.ToUpper(sample)
	for _, fp := range fingerprints {
		for _, phrase := range fp.phrases {
			if strings.Contains(upper, strings.ToUpper(phrase)) {
				return fp.institution, true
			}
		}
		for _, pat := range fp.patterns {
			if pat.MatchString(sample) {
				return fp.institution, true
			}
		}
	}
	return "", false
}
