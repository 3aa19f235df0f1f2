package intake

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/llm"
	"github.com/wolfman30/solarbill-ai-platform/internal/location"
)

const (
	ReplySourceTemplate = "template"
	ReplySourceLLM      = "llm"
	// ReplySourceGuarded marks a template reply used because the lead's text
	// or the model's answer failed the prompt guard.
	ReplySourceGuarded = "guarded"
)

const (
	replyOptOut       = "Tudo bem! Não vou mais enviar mensagens. Se mudar de ideia, é só chamar por aqui."
	replyAskLocation  = "Olá! Sou o assistente de energia solar. De qual cidade você fala? Se puder, já me envie uma foto da sua última conta de luz."
	replyAskBill      = "Ótimo, atendemos %s! Para calcular sua economia, me envie uma foto da sua última conta de luz."
	replyPricing      = "O valor do sistema depende do seu consumo. Me envie uma foto da sua conta de luz que eu faço uma simulação para você."
	replyUnreadable   = "Não consegui ler todos os dados da sua conta. Pode enviar uma foto mais nítida, mostrando o valor total e o nome do titular?"
	replyQualified    = "Obrigado%s! Com uma conta de R$ %s, você tem um ótimo perfil para energia solar. Um consultor vai falar com você em breve."
	replyNotQualified = "Obrigado%s! Com uma conta de R$ %s a economia com energia solar ainda é pequena, mas deixei seus dados registrados."
)

const replySystemPrompt = `Você é um assistente de vendas de energia solar no Brasil conversando por WhatsApp.
Reescreva a mensagem sugerida em português, de forma simpática e curta (no máximo 3 frases).
Não invente valores, prazos ou descontos. Não faça perguntas além das que já estão na mensagem sugerida.`

// turn is what the reply composer knows about the current message.
type turn struct {
	intent   location.Intent
	context  conversation.Context
	analysis *Analysis
}

// templateReply picks the deterministic reply for a turn. It is also the
// fallback when every LLM provider fails.
func templateReply(t turn) string {
	if t.intent == location.IntentOptOut {
		return replyOptOut
	}
	if a := t.analysis; a != nil {
		amount, ok := a.Fields.TotalAmount()
		if !ok || len(a.Validation.ValidationErrors) > 0 {
			return replyUnreadable
		}
		name := ""
		if n, ok := a.Fields.CustomerName(); ok {
			name = ", " + firstName(n)
		}
		if a.Qualification.IsQualified {
			return fmt.Sprintf(replyQualified, name, extraction.FormatAmount(amount))
		}
		return fmt.Sprintf(replyNotQualified, name, extraction.FormatAmount(amount))
	}
	if t.intent == location.IntentPricing {
		return replyPricing
	}
	if t.context.HasLocation() {
		return fmt.Sprintf(replyAskBill, t.context.City+"/"+t.context.State)
	}
	return replyAskLocation
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.BrazilianPortuguese).String(fields[0])
}

// composeReply asks the LLM to rephrase the template. Any failure keeps the
// template text; model output never changes what the pipeline decides.
func composeReply(ctx context.Context, client llm.Client, t turn, inbound string) (string, string) {
	suggested := templateReply(t)
	if client == nil || t.intent == location.IntentOptOut {
		return suggested, ReplySourceTemplate
	}
	scan := llm.ScanInput(inbound)
	if scan.Blocked {
		return suggested, ReplySourceGuarded
	}
	resp, err := client.Complete(ctx, llm.Request{
		System: []string{replySystemPrompt},
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("Mensagem do cliente: %s\n\nMensagem sugerida: %s", strings.TrimSpace(scan.Text), suggested)},
		},
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil {
		return suggested, ReplySourceTemplate
	}
	out := llm.ScanOutput(strings.TrimSpace(resp.Text))
	text := strings.TrimSpace(out.Text)
	if text == "" {
		if out.Leaked {
			return suggested, ReplySourceGuarded
		}
		return suggested, ReplySourceTemplate
	}
	return text, ReplySourceLLM
}
