// Package bankrules loads per-institution parsing rules and detects which
// institution a statement belongs to. Rule sets are immutable: institution
// overlays are merged onto the base set by pure functions, never mutated in
// place.
package bankrules

import "regexp"

// InstitutionID identifies a supported bank.
type InstitutionID string

const (
	BBVA       InstitutionID = "BBVA"
	Santander  InstitutionID = "SANTANDER"
	Banorte    InstitutionID = "BANORTE"
	Banamex    InstitutionID = "BANAMEX"
	HSBC       InstitutionID = "HSBC"
	Scotiabank InstitutionID = "SCOTIABANK"
)

// RuleSet carries everything the heuristic and layout parsers need for one
// institution. Slices are treated as read-only by consumers.
type RuleSet struct {
	Institution InstitutionID

	CreditKeywords   []string
	DebitKeywords    []string
	TransferKeywords []string

	// AmountPatterns gate which whitespace-separated tokens count as money.
	// Each candidate token is tested against the patterns whole; partial
	// matches inside a longer token never count.
	AmountPatterns []*regexp.Regexp
	// SkipPatterns match balance rows and other non-transaction lines.
	SkipPatterns []*regexp.Regexp
	// LinePatterns match full transaction lines for the heuristic parser.
	LinePatterns []*regexp.Regexp

	MergeMultilineConcepts  bool
	PreferFirstAmount       bool
	HasRunningBalanceColumn bool
}

// Base returns the institution-agnostic rule set. Every overlay extends it;
// nothing ever replaces a base entry.
func Base() RuleSet {
	return RuleSet{
		CreditKeywords: []string{
			"DEPOSITO", "ABONO", "TRANSFERENCIA RECIBIDA", "SPEI RECIBIDO",
			"PAGO RECIBIDO", "REEMBOLSO", "DEVOLUCION", "INTERESES PAGADOS",
			"NOMINA", "BONIFICACION", "RENDIMIENTO",
		},
		DebitKeywords: []string{
			"CARGO", "RETIRO", "COMPRA", "PAGO DE SERVICIO", "DOMICILIACION",
			"TRANSFERENCIA ENVIADA", "SPEI ENVIADO", "COMISION", "IVA",
			"DISPOSICION", "CAJERO", "SUSCRIPCION",
		},
		TransferKeywords: []string{
			"TRASPASO ENTRE CUENTAS", "TRASPASO A CUENTA PROPIA",
			"TRANSFERENCIA MISMO TITULAR", "TRASPASO",
		},
		AmountPatterns: []*regexp.Regexp{
			regexp.MustCompile(`-?\$?\d{1,3}(?:,\d{3})*\.\d{2}`),
			regexp.MustCompile(`-?\$?\d+\.\d{2}`),
		},
		SkipPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)SALDO\s+(ANTERIOR|INICIAL)`),
			regexp.MustCompile(`(?i)SALDO\s+(FINAL|ACTUAL|AL\s+CORTE)`),
			regexp.MustCompile(`(?i)SALDO\s+PROMEDIO`),
			regexp.MustCompile(`(?i)TOTAL\s+DE\s+(CARGOS|ABONOS|MOVIMIENTOS)`),
			regexp.MustCompile(`(?i)PAGINA\s+\d+`),
		},
		LinePatterns: []*regexp.Regexp{
			// DD/MM/YYYY  DESCRIPTION ... AMOUNT [BALANCE]
			regexp.MustCompile(`^(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s+(.+?)\s+(-?\$?[\d,]+\.\d{2})(?:\s+(-?\$?[\d,]+\.\d{2}))?\s*$`),
			// MON. DD  DESCRIPTION ... AMOUNT [BALANCE]
			regexp.MustCompile(`(?i)^((?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC|JAN|APR|AUG|DEC)\.?\s+\d{1,2})\s+(.+?)\s+(-?\$?[\d,]+\.\d{2})(?:\s+(-?\$?[\d,]+\.\d{2}))?\s*$`),
			// DD MON  DESCRIPTION ... AMOUNT [BALANCE]
			regexp.MustCompile(`(?i)^(\d{1,2}\s+(?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC))\s+(.+?)\s+(-?\$?[\d,]+\.\d{2})(?:\s+(-?\$?[\d,]+\.\d{2}))?\s*$`),
		},
		MergeMultilineConcepts: true,
	}
}

// Merge returns a new rule set with the overlay's entries appended to the
// base. Union semantics: entries already present in the base are not
// duplicated, and base entries are never removed or replaced.
func Merge(base, overlay RuleSet) RuleSet {
	out := RuleSet{
		Institution:      overlay.Institution,
		CreditKeywords:   unionStrings(base.CreditKeywords, overlay.CreditKeywords),
		DebitKeywords:    unionStrings(base.DebitKeywords, overlay.DebitKeywords),
		TransferKeywords: unionStrings(base.TransferKeywords, overlay.TransferKeywords),
		AmountPatterns:   unionPatterns(base.AmountPatterns, overlay.AmountPatterns),
		SkipPatterns:     unionPatterns(base.SkipPatterns, overlay.SkipPatterns),
		LinePatterns:     unionPatterns(base.LinePatterns, overlay.LinePatterns),

		MergeMultilineConcepts:  base.MergeMultilineConcepts || overlay.MergeMultilineConcepts,
		PreferFirstAmount:       overlay.PreferFirstAmount,
		HasRunningBalanceColumn: overlay.HasRunningBalanceColumn,
	}
	return out
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionPatterns(base, extra []*regexp.Regexp) []*regexp.Regexp {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]*regexp.Regexp, 0, len(base)+len(extra))
	for _, p := range base {
		if !seen[p.String()] {
			seen[p.String()] = true
			out = append(out, p)
		}
	}
	for _, p := range extra {
		if !seen[p.String()] {
			seen[p.String()] = true
			out = append(out, p)
		}
	}
	return out
}
