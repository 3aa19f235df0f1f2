package location

import (
	"strings"
	"unicode"

	"github.com/wolfman30/solarbill-ai-platform/internal/textnorm"
)

// Intent is the coarse purpose of an inbound chat message.
type Intent string

const (
	IntentGreeting      Intent = "greeting"
	IntentSolarInterest Intent = "solar_interest"
	IntentSendBill      Intent = "send_bill"
	IntentPricing       Intent = "pricing"
	IntentOptOut        Intent = "opt_out"
	IntentUnknown       Intent = "unknown"
)

// intentKeywords is checked in order; opt-outs must win over anything else in
// the same message.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentOptOut, []string{"pare", "parar", "sair", "descadastrar", "remover meu numero", "nao quero mais", "nao quero receber", "nao tenho interesse", "stop"}},
	{IntentSendBill, []string{"conta de luz", "conta de energia", "fatura", "segue a conta", "foto da conta", "mandei a conta", "enviei a conta", "vou mandar a conta", "boleto"}},
	{IntentPricing, []string{"quanto custa", "preco", "valor do sistema", "orcamento", "parcela", "parcelado", "financiamento", "financiar"}},
	{IntentSolarInterest, []string{"energia solar", "placa solar", "placas solares", "painel solar", "paineis", "fotovoltaic*", "economizar", "economia na conta", "gerar energia"}},
	{IntentGreeting, []string{"oi", "ola", "bom dia", "boa tarde", "boa noite", "opa", "e ai"}},
}

// DetectIntent classifies text by keyword tables. It never consults an LLM.
func DetectIntent(text string) Intent {
	folded := textnorm.Fold(text)
	if folded == "" {
		return IntentUnknown
	}
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if matchesKeyword(folded, kw) {
				return group.intent
			}
		}
	}
	return IntentUnknown
}

// matchesKeyword treats keywords ending in "*" ("fotovoltaic*") as word
// prefixes and everything else as whole words.
func matchesKeyword(folded, kw string) bool {
	if stem, ok := strings.CutSuffix(kw, "*"); ok {
		return containsWordPrefix(folded, stem)
	}
	return textnorm.ContainsWord(folded, kw)
}

func containsWordPrefix(folded, stem string) bool {
	for _, word := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if strings.HasPrefix(word, stem) {
			return true
		}
	}
	return false
}
