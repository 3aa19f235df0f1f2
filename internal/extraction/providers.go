package extraction

import "github.com/wolfman30/solarbill-ai-platform/internal/textnorm"

// providerAliases maps Brazilian electricity distributors to the names and legal
// names printed on their bills. Aliases are folded (lowercase, no accents).
// Table order is significant: the first alias found in the text wins, so
// brand-specific legal names come before umbrella group names.
var providerAliases = []struct {
	name    string
	aliases []string
}{
	{"CEMIG", []string{"cemig distribuicao", "cemig d", "companhia energetica de minas gerais", "cemig"}},
	{"CPFL", []string{"cpfl paulista", "cpfl piratininga", "cpfl santa cruz", "companhia paulista de forca e luz", "cpfl"}},
	{"ENEL", []string{"enel distribuicao sao paulo", "enel distribuicao rio", "enel distribuicao ceara", "eletropaulo", "ampla energia", "coelce", "enel"}},
	{"LIGHT", []string{"light servicos de eletricidade", "light sesa", "light s.a", "light"}},
	{"COPEL", []string{"copel distribuicao", "companhia paranaense de energia", "copel"}},
	{"CELESC", []string{"celesc distribuicao", "centrais eletricas de santa catarina", "celesc"}},
	{"COELBA", []string{"neoenergia coelba", "companhia de eletricidade do estado da bahia", "coelba"}},
	{"CELPE", []string{"neoenergia pernambuco", "companhia energetica de pernambuco", "celpe"}},
	{"COSERN", []string{"neoenergia cosern", "companhia energetica do rio grande do norte", "cosern"}},
	{"ELEKTRO", []string{"neoenergia elektro", "elektro redes", "elektro"}},
	{"NEOENERGIA BRASILIA", []string{"neoenergia brasilia", "neoenergia distribuicao brasilia", "ceb distribuicao"}},
	{"CEEE EQUATORIAL", []string{"ceee equatorial", "companhia estadual de distribuicao de energia eletrica", "ceee"}},
	{"CEA EQUATORIAL", []string{"companhia de eletricidade do amapa", "cea equatorial"}},
	{"EQUATORIAL", []string{"equatorial energia", "equatorial para", "equatorial maranhao", "equatorial piaui", "equatorial alagoas", "equatorial goias", "celg distribuicao", "cemar", "celpa", "equatorial"}},
	{"RGE", []string{"rge sul", "rio grande energia", "rge"}},
	{"ENERGISA", []string{"energisa mato grosso do sul", "energisa mato grosso", "energisa tocantins", "energisa paraiba", "energisa sergipe", "energisa minas", "energisa"}},
	{"EDP", []string{"edp espirito santo", "edp sao paulo", "edp bandeirante", "escelsa", "edp"}},
	{"AMAZONAS ENERGIA", []string{"amazonas distribuidora de energia", "amazonas energia"}},
	{"RORAIMA ENERGIA", []string{"roraima energia"}},
	{"DMED", []string{"dme distribuicao", "dmed"}},
}

// IdentifyProvider scans text for a known distributor alias and returns the
// canonical distributor name.
func IdentifyProvider(text string) (string, bool) {
	folded := textnorm.Fold(text)
	if folded == "" {
		return "", false
	}
	for _, p := range providerAliases {
		for _, alias := range p.aliases {
			if textnorm.ContainsWord(folded, alias) {
				return p.name, true
			}
		}
	}
	return "", false
}

// KnownProviders lists canonical distributor names in table order.
func KnownProviders() []string {
	out := make([]string, 0, len(providerAliases))
	for _, p := range providerAliases {
		out = append(out, p.name)
	}
	return out
}
