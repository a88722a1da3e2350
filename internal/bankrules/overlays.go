package bankrules

import "regexp"

// overlays holds the per-institution additions. Each entry only lists what
// the institution adds on top of Base(); Merge handles the union.
var overlays = map[InstitutionID]RuleSet{
	BBVA: {
		Institution: BBVA,
		CreditKeywords: []string{
			"SU PAGO EN EFECTIVO", "DEPOSITO EN EFECTIVO PRACTICAJA",
			"SPEI RECIBIDOBANCO",
		},
		DebitKeywords: []string{
			"PAGO CUENTA DE TERCERO", "PAGO TARJETA DE CREDITO",
			"CARGO CUENTA DE TERCERO",
		},
		SkipPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)SALDO\s+DE\s+OPERACION`),
			regexp.MustCompile(`(?i)SALDO\s+LIQUIDACION`),
		},
		MergeMultilineConcepts:  true,
		HasRunningBalanceColumn: true,
	},
	Santander: {
		Institution: Santander,
		CreditKeywords: []string{
			"ABONO TRANSFERENCIA SPEI", "DEPOSITO EN SU CUENTA",
		},
		DebitKeywords: []string{
			"CARGO TRANSFERENCIA SPEI", "COMPRA TPV",
		},
		LinePatterns: []*regexp.Regexp{
			// DD-MON-YYYY FOLIO DESCRIPTION DEPOSITO/RETIRO SALDO
			regexp.MustCompile(`(?i)^(\d{2}-(?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC)-\d{4})\s+(\d+)\s+(.+?)\s+([\d,]+\.\d{2})\s+([\d,]+\.\d{2})\s*$`),
		},
		HasRunningBalanceColumn: true,
	},
	Banorte: {
		Institution: Banorte,
		DebitKeywords: []string{
			"PAGO SERVICIO BANORTE", "COMPRA ORDEN DE PAGO",
		},
		PreferFirstAmount:       true,
		HasRunningBalanceColumn: true,
	},
	Banamex: {
		Institution: Banamex,
		CreditKeywords: []string{
			"DEPOSITO MISMO DIA", "PAGO RECIBIDO SUC",
		},
		MergeMultilineConcepts: true,
	},
	HSBC: {
		Institution: HSBC,
		DebitKeywords: []string{
			"CARGO POR MANEJO DE CUENTA",
		},
	},
	Scotiabank: {
		Institution: Scotiabank,
	},
}

// layoutExtractors lists institutions whose statements are reliably tabular
// enough to use the word-position layout extractor directly.
var layoutExtractors = map[InstitutionID]bool{
	BBVA:    true,
	Banorte: true,
}

// HasLayoutExtractor reports whether a specialized layout extractor exists
// for the institution.
func HasLayoutExtractor(id InstitutionID) bool {
	return layoutExtractors[id]
}
