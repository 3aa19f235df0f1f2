// Package location pulls a lead's city/state and coarse intent out of free chat text.
package location

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wolfman30/solarbill-ai-platform/internal/textnorm"
)

// Location is a city with its two-letter state code.
type Location struct {
	City  string `json:"city"`
	State string `json:"state"`
}

func (l Location) String() string {
	return l.City + "/" + l.State
}

var states = map[string]string{
	"AC": "Acre", "AL": "Alagoas", "AP": "Amapá", "AM": "Amazonas", "BA": "Bahia",
	"CE": "Ceará", "DF": "Distrito Federal", "ES": "Espírito Santo", "GO": "Goiás",
	"MA": "Maranhão", "MT": "Mato Grosso", "MS": "Mato Grosso do Sul", "MG": "Minas Gerais",
	"PA": "Pará", "PB": "Paraíba", "PR": "Paraná", "PE": "Pernambuco", "PI": "Piauí",
	"RJ": "Rio de Janeiro", "RN": "Rio Grande do Norte", "RS": "Rio Grande do Sul",
	"RO": "Rondônia", "RR": "Roraima", "SC": "Santa Catarina", "SP": "São Paulo",
	"SE": "Sergipe", "TO": "Tocantins",
}

// IsState reports whether code is one of the 27 federative units.
func IsState(code string) bool {
	_, ok := states[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// StateName returns the full name of a state code.
func StateName(code string) (string, bool) {
	name, ok := states[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

var (
	// The UF follows ",", "/" or a dash in any case, or stands alone in
	// upper case at the end of a clause. A bare lower-case pair is too often a
	// word ("se", "to", "pa").
	residencePattern = regexp.MustCompile(`(?i:\b(?:moro|vivo|resido)\s+(?:em|no|na|nos|nas)|\bsou\s+(?:de|do|da))\s+` +
		`(\p{L}[\p{L}']*(?:\s+\p{L}[\p{L}']*){0,5})` +
		`(?:(?:\s*[,/]\s*|\s+[-–—]\s+)([A-Za-z]{2})\b|\s+([A-Z]{2})\s*(?:[.,;:!?)]|$))`)
	// Generic "City - UF": every word capitalised except connectors.
	genericPattern = regexp.MustCompile(`(\p{Lu}[\p{L}']+(?:\s+(?:(?:de|da|do|das|dos)\s+)?\p{Lu}[\p{L}']+)*)\s*[-–—/]\s*([A-Z]{2})\b`)
)

// disqualifying tokens mark a captured "city" that is really bill or sales vocabulary.
var disqualifying = map[string]struct{}{
	"conta": {}, "fatura": {}, "energia": {}, "luz": {}, "kwh": {}, "valor": {}, "total": {},
	"solar": {}, "pagar": {}, "boleto": {}, "desconto": {}, "placa": {}, "placas": {},
	"orcamento": {}, "consumo": {}, "mes": {}, "reais": {}, "casa": {}, "apartamento": {},
}

type majorCity struct {
	name   string
	state  string
	folded string
}

// majorCities omits names that are also common words or shared by several
// states (Natal, Vitória, Serra, Palmas, Contagem, Pelotas).
var majorCities = func() []majorCity {
	raw := []struct{ name, state string }{
		{"São Paulo", "SP"}, {"Rio de Janeiro", "RJ"}, {"Belo Horizonte", "MG"},
		{"Brasília", "DF"}, {"Salvador", "BA"}, {"Fortaleza", "CE"}, {"Recife", "PE"},
		{"Curitiba", "PR"}, {"Porto Alegre", "RS"}, {"Manaus", "AM"}, {"Belém", "PA"},
		{"Goiânia", "GO"}, {"Campinas", "SP"}, {"São Luís", "MA"}, {"Maceió", "AL"},
		{"Teresina", "PI"}, {"João Pessoa", "PB"}, {"Campo Grande", "MS"}, {"Cuiabá", "MT"},
		{"Florianópolis", "SC"}, {"Aracaju", "SE"}, {"Porto Velho", "RO"}, {"Macapá", "AP"},
		{"Rio Branco", "AC"}, {"Boa Vista", "RR"}, {"Uberlândia", "MG"},
		{"Juiz de Fora", "MG"}, {"Montes Claros", "MG"}, {"Ribeirão Preto", "SP"},
		{"Sorocaba", "SP"}, {"São José dos Campos", "SP"}, {"Guarulhos", "SP"},
		{"Osasco", "SP"}, {"Santo André", "SP"}, {"Niterói", "RJ"}, {"Duque de Caxias", "RJ"},
		{"Nova Iguaçu", "RJ"}, {"Londrina", "PR"}, {"Maringá", "PR"}, {"Joinville", "SC"},
		{"Blumenau", "SC"}, {"Caxias do Sul", "RS"}, {"Feira de Santana", "BA"},
		{"Vitória da Conquista", "BA"}, {"Jaboatão dos Guararapes", "PE"}, {"Petrolina", "PE"},
		{"Caruaru", "PE"}, {"Campina Grande", "PB"}, {"Mossoró", "RN"}, {"Juazeiro do Norte", "CE"},
		{"Aparecida de Goiânia", "GO"}, {"Anápolis", "GO"}, {"Imperatriz", "MA"},
		{"Santarém", "PA"}, {"Ananindeua", "PA"}, {"Vila Velha", "ES"}, {"Cariacica", "ES"},
	}
	out := make([]majorCity, 0, len(raw))
	for _, c := range raw {
		out = append(out, majorCity{name: c.name, state: c.state, folded: textnorm.Fold(c.name)})
	}
	// Longest names first so "Aparecida de Goiânia" wins over "Goiânia".
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].folded) > len(out[j].folded) })
	return out
}()

// Extract returns the first acceptable location in text: residence phrases,
// then "City - UF" tokens, then a lookup of well-known city names.
func Extract(text string) (Location, bool) {
	if strings.TrimSpace(text) == "" {
		return Location{}, false
	}
	for _, re := range []*regexp.Regexp{residencePattern, genericPattern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			state := m[2]
			if len(m) > 3 && state == "" {
				state = m[3]
			}
			if loc, ok := candidate(m[1], state); ok {
				return loc, true
			}
		}
	}
	folded := textnorm.Fold(text)
	for _, c := range majorCities {
		if textnorm.ContainsWord(folded, c.folded) {
			return Location{City: c.name, State: c.state}, true
		}
	}
	return Location{}, false
}

func candidate(city, state string) (Location, bool) {
	city = strings.Trim(strings.TrimSpace(city), ".'")
	state = strings.ToUpper(state)
	if !IsState(state) {
		return Location{}, false
	}
	if n := utf8.RuneCountInString(city); n < 3 || n > 50 {
		return Location{}, false
	}
	for _, word := range strings.Fields(textnorm.Fold(city)) {
		if _, bad := disqualifying[word]; bad {
			return Location{}, false
		}
	}
	return Location{City: titleCity(city), State: state}, true
}

var connectors = map[string]struct{}{"de": {}, "da": {}, "do": {}, "das": {}, "dos": {}, "e": {}}

// titleCity normalises "SAO JOSE DOS CAMPOS" and "recife" to title case,
// keeping Portuguese connectors in lower case.
func titleCity(city string) string {
	words := strings.Fields(city)
	for i, w := range words {
		lower := strings.ToLower(w)
		if _, ok := connectors[lower]; ok && i > 0 {
			words[i] = lower
			continue
		}
		words[i] = cases.Title(language.BrazilianPortuguese).String(w)
	}
	return strings.Join(words, " ")
}
