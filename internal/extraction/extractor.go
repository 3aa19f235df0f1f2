package extraction

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/wolfman30/solarbill-ai-platform/internal/textnorm"
)

// ---------- value sub-patterns ----------

const (
	amountPattern      = `(\d{1,3}(?:\.\d{3})+,\d{2}|\d+,\d{2}|\d+\.\d{2})`
	consumptionPattern = `(\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+\.\d{1,2}|\d+(?:,\d+)?)`
	datePattern        = `(\d{2}/\d{2}/\d{4}|\d{2}/\d{2}/\d{2}\b|\d{2}\.\d{2}\.\d{4}|\d{2}-\d{2}-\d{4})`
	idPattern          = `(\d[\d.\-/]{3,24}\d)`
	ufPattern          = `(?:AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MT|MS|MG|PA|PB|PR|PE|PI|RJ|RN|RS|RO|RR|SC|SP|SE|TO)`
)

// ---------- per-field pattern lists, most specific first ----------

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i:nome\s+do\s+cliente|nome\s+do\s+titular|titular|cliente|nome)\s*[:\-]\s*(\p{Lu}[\p{Lu}'\- ]{2,80})`),
		regexp.MustCompile(`(?i:dados\s+do\s+cliente)\s*\n\s*(\p{Lu}[\p{Lu}'\- ]{4,80})`),
		regexp.MustCompile(`(?i:nome|cliente|titular)\s*[:\-]\s*(\p{L}+(?:[ '\-]\p{L}+){1,6})`),
	}

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total\s+a\s+pagar\s*(?:\(r\$\))?\s*[:\-]?\s*(?:r\$\s*)?` + amountPattern),
		regexp.MustCompile(`(?i)valor\s+(?:total|a\s+pagar|da\s+fatura|do\s+documento|cobrado)\s*[:\-]?\s*(?:r\$\s*)?` + amountPattern),
		regexp.MustCompile(`(?i)total\s+(?:da\s+fatura|geral)?\s*[:\-]?\s*r\$\s*` + amountPattern),
		regexp.MustCompile(`(?i)r\$\s*` + amountPattern),
	}

	consumptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)consumo(?:\s+(?:total|faturado|ativo|do\s+m[eê]s|em))*\s*[:\-]?\s*` + consumptionPattern + `\s*kwh`),
		regexp.MustCompile(`(?i)consumo(?:\s+(?:total|faturado|ativo|do\s+m[eê]s))*\s*\(kwh\)\s*[:\-]?\s*` + consumptionPattern),
		// Must not start inside a number: "350.5 kWh" is not 5 kWh.
		regexp.MustCompile(`(?i)(?:^|[^\d.,])` + consumptionPattern + `\s*kwh\b`),
	}

	dueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:data\s+de\s+)?vencimento\s*[:\-]?\s*` + datePattern),
		regexp.MustCompile(`(?i)vence(?:\s+em)?\s*[:\-]?\s*` + datePattern),
		regexp.MustCompile(`(?i)pag(?:ar|[aá]vel)\s+at[eé]\s*[:\-]?\s*` + datePattern),
	}

	installationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:n[ºo°]\.?\s*(?:da\s+)?)?instala[cç][aã]o\s*[:\-]?\s*` + idPattern),
		regexp.MustCompile(`(?i)unidade\s+consumidora\s*(?:\(uc\))?\s*[:\-]?\s*` + idPattern),
		regexp.MustCompile(`(?i)\bUC\s*[:\-]?\s*` + idPattern),
		regexp.MustCompile(`(?i)c[oó]digo\s+(?:do\s+)?(?:cliente|consumidor)\s*[:\-]?\s*` + idPattern),
	}

	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)endere[cç]o(?:\s+de\s+(?:instala[cç][aã]o|entrega))?\s*[:\-]\s*([^\n]{5,150})`),
		regexp.MustCompile(`(?i)\b((?:rua|r\.|avenida|av\.|travessa|tv\.|alameda|al\.|rodovia|estrada|pra[cç]a)\s+[^\n]{3,150})`),
	}

	cityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:cidade|munic[ií]pio)\s*[:\-]\s*(\p{L}[\p{L} ']{1,48}\p{L})`),
		regexp.MustCompile(`(?i)cep\s*[:\-]?\s*\d{5}-?\d{3}\s*[-,]?\s*(\p{Lu}[\p{L} ']{1,48}\p{L})\s*[-/]\s*` + ufPattern + `\b`),
		regexp.MustCompile(`(\p{Lu}[\p{L} ']{1,48}\p{L})\s*[-/]\s*` + ufPattern + `\s*[,\-]?\s*(?i:cep)`),
	}
)

// labelStopwords end a captured name/city/address when OCR runs several labels
// together on one line.
var labelStopwords = map[string]struct{}{
	"endereco": {}, "cpf": {}, "cnpj": {}, "cep": {}, "rua": {}, "av": {}, "avenida": {},
	"codigo": {}, "instalacao": {}, "classe": {}, "vencimento": {}, "total": {}, "valor": {},
	"consumo": {}, "estado": {}, "uf": {}, "bairro": {}, "cidade": {}, "municipio": {},
	"referencia": {}, "mes": {}, "leitura": {}, "data": {}, "nota": {}, "fiscal": {},
}

var dateLayouts = []string{"02/01/2006", "02/01/06", "02.01.2006", "02-01-2006"}

type fieldRule struct {
	patterns []*regexp.Regexp
	clean    func(string) string
}

// Extractor pulls bill fields out of OCR text using ordered regex lists. It is
// stateless and safe for concurrent use.
type Extractor struct {
	name         fieldRule
	amount       fieldRule
	consumption  fieldRule
	dueDate      fieldRule
	installation fieldRule
	address      fieldRule
	city         fieldRule
}

// NewExtractor returns an extractor wired with the default Brazilian bill patterns.
func NewExtractor() *Extractor {
	return &Extractor{
		name:         fieldRule{patterns: namePatterns, clean: cleanName},
		amount:       fieldRule{patterns: amountPatterns, clean: validAmount},
		consumption:  fieldRule{patterns: consumptionPatterns, clean: validConsumption},
		dueDate:      fieldRule{patterns: dueDatePatterns, clean: validDate},
		installation: fieldRule{patterns: installationPatterns, clean: cleanInstallationID},
		address:      fieldRule{patterns: addressPatterns, clean: cleanAddress},
		city:         fieldRule{patterns: cityPatterns, clean: cleanCity},
	}
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor.
func Extract(raw string) (ExtractedFields, error) {
	return defaultExtractor.Extract(raw)
}

// Extract returns the fields found in raw. Absent fields are nil; only invalid
// UTF-8 or binary input yields an *InputError.
func (e *Extractor) Extract(raw string) (ExtractedFields, error) {
	if !utf8.ValidString(raw) {
		return ExtractedFields{}, &InputError{Reason: "text is not valid UTF-8"}
	}
	if strings.ContainsRune(raw, 0) {
		return ExtractedFields{}, &InputError{Reason: "text contains NUL bytes"}
	}

	var v Values
	v.CustomerName = e.name.first(raw)
	if s := e.amount.first(raw); s != nil {
		if d, err := ParseAmount(*s); err == nil {
			v.TotalAmount = &d
		}
	}
	if s := e.consumption.first(raw); s != nil {
		if d, err := ParseAmount(*s); err == nil {
			kwh, _ := d.Float64()
			v.ConsumptionKWh = &kwh
		}
	}
	if s := e.dueDate.first(raw); s != nil {
		if d, ok := parseDate(*s); ok {
			v.DueDate = &d
		}
	}
	v.InstallationID = e.installation.first(raw)
	v.Address = e.address.first(raw)
	v.City = e.city.first(raw)
	if provider, ok := IdentifyProvider(raw); ok {
		v.Provider = &provider
	}
	return NewExtractedFields(v), nil
}

// first returns the cleaned capture of the first pattern that yields a
// non-empty value; later patterns are not consulted.
func (r fieldRule) first(raw string) *string {
	for _, re := range r.patterns {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			if len(m) < 2 {
				continue
			}
			value := strings.TrimSpace(m[1])
			if r.clean != nil {
				value = r.clean(value)
			}
			if value != "" {
				return &value
			}
		}
	}
	return nil
}

// ---------- cleaners: return "" to reject a capture ----------

func cutAtStopword(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		folded := strings.Trim(textnorm.Fold(w), ".:-")
		if _, stop := labelStopwords[folded]; stop {
			break
		}
		if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			break
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func cleanName(s string) string {
	name := strings.Trim(cutAtStopword(s), " -'")
	if utf8.RuneCountInString(name) < 3 {
		return ""
	}
	return name
}

func cleanCity(s string) string {
	city := strings.Trim(cutAtStopword(s), " -'")
	if n := utf8.RuneCountInString(city); n < 3 || n > 50 {
		return ""
	}
	return city
}

func cleanAddress(s string) string {
	if idx := strings.Index(s, "..."); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "   "); idx >= 0 {
		s = s[:idx]
	}
	s = strings.Trim(strings.TrimSpace(s), ",;-")
	if utf8.RuneCountInString(s) < 5 {
		return ""
	}
	return s
}

func cleanInstallationID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 5 {
		return ""
	}
	return b.String()
}

func validAmount(s string) string {
	if _, err := ParseAmount(s); err != nil {
		return ""
	}
	return s
}

func validConsumption(s string) string {
	d, err := ParseAmount(s)
	if err != nil || !d.GreaterThan(decimal.Zero) {
		return ""
	}
	return s
}

func validDate(s string) string {
	if _, ok := parseDate(s); !ok {
		return ""
	}
	return s
}

func parseDate(s string) (Date, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), true
		}
	}
	return Date{}, false
}
