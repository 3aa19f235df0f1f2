package llm

import (
	"regexp"
	"strings"
)

// Thresholds for InputScan.Score.
const (
	inputBlockThreshold = 0.7
	inputWarnThreshold  = 0.3
)

// InputScan is the verdict on lead text before it reaches a model.
type InputScan struct {
	// Blocked means the text must not be sent to the model.
	Blocked bool
	Score   float64
	Reasons []string
	// Text is the message to send when not blocked; markers are stripped
	// once the score reaches the warn threshold.
	Text string
}

type weightedPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

var inputPatterns = []weightedPattern{
	{regexp.MustCompile(`(?i)\b(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?)`), "injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)\b(ignore|esqueça|esqueca|desconsidere)\s+(todas\s+)?(as\s+)?(suas\s+)?(instruç(ões|ao|ão)|instrucoes|regras|orientaç(ões|oes))(\s+anteriores)?`), "injection:ignore_instructions_pt", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+|agora\s+voc[eê]\s+[eé]\s+(um|uma|meu|minha)\s+`), "injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:|system\s*prompt\s*:|novas?\s+instruç(ões|ao|ão)\s*:|<<\s*sys(tem)?\s*>>`), "injection:new_instructions", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|modo\s+desenvolvedor`), "injection:jailbreak_keyword", 0.9},
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|tell\s+me)\s+(your\s+)?(system\s+prompt|instructions|initial\s+prompt)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(mostre|revele|repita|me\s+diga|qual\s+[eé])\s+((o|a|os|as|seu|sua|seus|suas)\s+)*(prompt|instruç(ões|ao|ão)|instrucoes)`), "exfiltration:system_prompt_pt", 0.8},
	{regexp.MustCompile(`(?i)\b(api|secret|aws|database|db)\s*(key|token|secret|password)s?\b|\b(chave|senha|token)\s+(da\s+|do\s+)?(api|banco|aws)\b`), "exfiltration:credentials", 0.8},
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "manipulation:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user|sistema)\s*:`), "manipulation:role_markers", 0.7},
	{regexp.MustCompile(`<\s*(script|img|iframe|object|embed|svg|form)\b`), "obfuscation:html", 0.6},
	{regexp.MustCompile(`!\[.*\]\(https?://`), "obfuscation:markdown_image", 0.4},
}

var (
	specialTokens = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkers   = regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user|sistema)\s*:`)
	htmlTags      = regexp.MustCompile(`<\s*(script|img|iframe|object|embed|svg|form)\b[^>]*>`)
	markdownImage = regexp.MustCompile(`!\[.*?\]\(https?://[^)]+\)`)
)

// ScanInput scores lead text for prompt injection. The score is the highest
// matching weight plus 0.1 for every additional signal, capped at 1.
func ScanInput(text string) InputScan {
	if strings.TrimSpace(text) == "" {
		return InputScan{Text: text}
	}

	var reasons []string
	maxWeight := 0.0
	for _, p := range inputPatterns {
		if p.re.MatchString(text) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}
	score := maxWeight
	if len(reasons) > 1 {
		score += float64(len(reasons)-1) * 0.1
	}
	if score > 1 {
		score = 1
	}

	scan := InputScan{Score: score, Reasons: reasons, Text: text}
	switch {
	case score >= inputBlockThreshold:
		scan.Blocked = true
		scan.Text = ""
	case score >= inputWarnThreshold:
		scan.Text = stripMarkers(text)
	}
	return scan
}

func stripMarkers(text string) string {
	cleaned := specialTokens.ReplaceAllString(text, "")
	cleaned = roleMarkers.ReplaceAllString(cleaned, "")
	cleaned = htmlTags.ReplaceAllString(cleaned, "")
	cleaned = markdownImage.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// OutputScan is the verdict on a model reply before it is sent to a lead.
type OutputScan struct {
	Leaked  bool
	Reasons []string
	// Text is the reply to send, or empty when it cannot be salvaged.
	Text string
}

type leakPattern struct {
	re     *regexp.Regexp
	reason string
	// block drops the whole reply; otherwise the offending sentence is cut.
	block bool
}

var outputPatterns = []leakPattern{
	{regexp.MustCompile(`(?i)my (system\s+)?prompt\s+(is|says)|my instructions?\s+(are|say)|minhas\s+instruç(ões|oes)\s+(são|sao|dizem)|meu\s+prompt`), "leak:instructions", true},
	{regexp.MustCompile(`(?i)i('m| am) (programmed|instructed|configured) to|fui\s+(programad[oa]|instruíd[oa]|instruid[oa]|configurad[oa])\s+para`), "leak:programming", true},
	{regexp.MustCompile(`(?i)(powered by|built on|running on)\s+(Claude|GPT|OpenAI|Anthropic|Bedrock|Gemini)|(baseado|rodando)\s+(no|em)\s+(Claude|GPT|Gemini|Bedrock)`), "leak:tech_stack", true},
	{regexp.MustCompile(`(?i)(api[_\s]?key|secret[_\s]?key|access[_\s]?token|bearer\s+token)\s*[:=]\s*\S+`), "leak:credential", true},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "leak:aws_key", true},
	{regexp.MustCompile(`(?i)(postgres|redis)://\S+`), "leak:database_url", true},
	{regexp.MustCompile(`(?i)/admin/|/webhooks/|/internal/`), "leak:internal_path", true},
	{regexp.MustCompile(`(?i)\b(sou|eu sou)\s+(um|uma)\s+(IA|intelig[eê]ncia artificial|modelo de linguagem|rob[oô]|chatbot)\b|i('m| am) (a|an) (AI|language model|chatbot)\b`), "leak:ai_identity", false},
}

var identitySentence = regexp.MustCompile(`(?i)[^.!?]*\b((sou|eu sou)\s+(um|uma)\s+(IA|intelig[eê]ncia artificial|modelo de linguagem|rob[oô]|chatbot)|i('m| am) (a|an) (AI|language model|chatbot))\b[^.!?]*[.!?]?\s*`)

// ScanOutput checks a model reply for leaked instructions, credentials or
// internal endpoints. Identity disclosures alone are cut, not blocked.
func ScanOutput(reply string) OutputScan {
	if strings.TrimSpace(reply) == "" {
		return OutputScan{Text: reply}
	}

	var reasons []string
	block := false
	for _, p := range outputPatterns {
		if p.re.MatchString(reply) {
			reasons = append(reasons, p.reason)
			block = block || p.block
		}
	}
	if len(reasons) == 0 {
		return OutputScan{Text: reply}
	}

	scan := OutputScan{Leaked: true, Reasons: reasons}
	if !block {
		scan.Text = strings.TrimSpace(identitySentence.ReplaceAllString(reply, ""))
	}
	return scan
}
