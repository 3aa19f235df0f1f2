package extraction

import (
	"errors"
	"testing"
	"time"
)

const cemigBill = `CEMIG DISTRIBUICAO S.A. CNPJ 06.981.180/0001-16
NOTA FISCAL / CONTA DE ENERGIA ELETRICA
CLIENTE: MARIA SILVA SANTOS
ENDEREÇO: RUA DAS ACACIAS 245 APTO 12 - SAVASSI
BELO HORIZONTE - MG CEP 30140-071
Nº DA INSTALAÇÃO: 3004.567.890
VENCIMENTO: 15/03/2025
CONSUMO FATURADO 412 kWh
TOTAL A PAGAR: R$ 387,45`

func TestExtractScenarioSnippet(t *testing.T) {
	fields, err := Extract("TOTAL A PAGAR: R$ 387,45 ... CLIENTE: MARIA SILVA SANTOS ... CEMIG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	amount, ok := fields.TotalAmount()
	if !ok || amount.StringFixed(2) != "387.45" {
		t.Fatalf("expected amount 387.45, got %v (ok=%v)", amount, ok)
	}
	if name, _ := fields.CustomerName(); name != "MARIA SILVA SANTOS" {
		t.Fatalf("expected name MARIA SILVA SANTOS, got %q", name)
	}
	if provider, _ := fields.Provider(); provider != "CEMIG" {
		t.Fatalf("expected provider CEMIG, got %q", provider)
	}
}

func TestExtractFullBill(t *testing.T) {
	fields, err := Extract(cemigBill)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if name, _ := fields.CustomerName(); name != "MARIA SILVA SANTOS" {
		t.Errorf("name = %q", name)
	}
	if amount, _ := fields.TotalAmount(); amount.StringFixed(2) != "387.45" {
		t.Errorf("amount = %s", amount)
	}
	if kwh, _ := fields.ConsumptionKWh(); kwh != 412 {
		t.Errorf("consumption = %v", kwh)
	}
	if due, ok := fields.DueDate(); !ok || due.String() != "2025-03-15" {
		t.Errorf("due date = %v (ok=%v)", due, ok)
	}
	if id, _ := fields.InstallationID(); id != "3004567890" {
		t.Errorf("installation id = %q", id)
	}
	if addr, _ := fields.Address(); addr != "RUA DAS ACACIAS 245 APTO 12 - SAVASSI" {
		t.Errorf("address = %q", addr)
	}
	if city, _ := fields.City(); city != "BELO HORIZONTE" {
		t.Errorf("city = %q", city)
	}
	if provider, _ := fields.Provider(); provider != "CEMIG" {
		t.Errorf("provider = %q", provider)
	}
}

func TestExtractPatternPriority(t *testing.T) {
	// "total a pagar" beats the generic R$ pattern even when it appears later.
	fields, err := Extract("Tarifa R$ 12,00\nTotal a pagar R$ 1.234,56")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount, _ := fields.TotalAmount(); amount.StringFixed(2) != "1234.56" {
		t.Fatalf("expected labeled amount to win, got %s", amount)
	}
}

func TestExtractConsumptionDecimals(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"gastei 350.5 kWh no mês", 350.5},
		{"gastei 350,5 kWh no mês", 350.5},
		{"CONSUMO: 350.5 kWh", 350.5},
		{"consumo 1.234 kWh", 1234},
		{"média de 1.250,75kWh", 1250.75},
	}
	for _, tt := range tests {
		fields, err := Extract(tt.text)
		if err != nil {
			t.Fatalf("Extract(%q): %v", tt.text, err)
		}
		if kwh, ok := fields.ConsumptionKWh(); !ok || kwh != tt.want {
			t.Errorf("Extract(%q) consumption = %v (ok=%v), want %v", tt.text, kwh, ok, tt.want)
		}
	}
}

func TestExtractMissingFieldsAreNil(t *testing.T) {
	fields, err := Extract("olá, tudo bem?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fields.IsEmpty() {
		t.Fatalf("expected empty extraction, got %v", fields.Present())
	}

	fields, err = Extract("")
	if err != nil || !fields.IsEmpty() {
		t.Fatalf("expected empty extraction for blank input, got %v err=%v", fields.Present(), err)
	}
}

func TestExtractRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"CLIENTE: JOAO\xff", "PDF\x00\x01binary"} {
		_, err := Extract(raw)
		var inputErr *InputError
		if !errors.As(err, &inputErr) {
			t.Fatalf("expected InputError for %q, got %v", raw, err)
		}
	}
}

func TestExtractNameStopsAtNextLabel(t *testing.T) {
	fields, _ := Extract("NOME DO CLIENTE: JOSE CARLOS PEREIRA CPF 123.456.789-00")
	if name, _ := fields.CustomerName(); name != "JOSE CARLOS PEREIRA" {
		t.Fatalf("expected name without CPF, got %q", name)
	}
}

func TestExtractedFieldsImmutable(t *testing.T) {
	name := "ANA PAULA FERREIRA"
	fields := NewExtractedFields(Values{CustomerName: &name})
	name = "changed"

	v := fields.Values()
	*v.CustomerName = "also changed"

	if got, _ := fields.CustomerName(); got != "ANA PAULA FERREIRA" {
		t.Fatalf("extracted fields were mutated: %q", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "387,45", want: "387.45"},
		{in: "R$ 1.234,56", want: "1234.56"},
		{in: "R$ 150,00", want: "150.00"},
		{in: "387.45", want: "387.45"},
		{in: "1.234", want: "1234.00"},
		{in: "350.5", want: "350.50"},
		{in: "", err: true},
		{in: "abc", err: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.StringFixed(2) != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.StringFixed(2), tt.want)
		}
	}
}

func TestIdentifyProvider(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{text: "Companhia Energética de Minas Gerais", want: "CEMIG", ok: true},
		{text: "NEOENERGIA COELBA - conta de luz", want: "COELBA", ok: true},
		{text: "Enel Distribuição São Paulo", want: "ENEL", ok: true},
		{text: "CEEE Equatorial", want: "CEEE EQUATORIAL", ok: true},
		{text: "Equatorial Pará", want: "EQUATORIAL", ok: true},
		{text: "RGE SUL DISTRIBUIDORA", want: "RGE", ok: true},
		{text: "conta de energia elétrica", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := IdentifyProvider(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("IdentifyProvider(%q) = %q,%v want %q,%v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
	if len(KnownProviders()) < 15 {
		t.Fatalf("expected at least 15 known providers, got %d", len(KnownProviders()))
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2025, time.March, 15)
	raw, err := d.MarshalJSON()
	if err != nil || string(raw) != `"2025-03-15"` {
		t.Fatalf("unexpected json %s err=%v", raw, err)
	}
}
