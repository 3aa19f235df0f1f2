package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names used in reports, validation messages and persisted JSON.
const (
	FieldCustomerName   = "customer_name"
	FieldTotalAmount    = "total_amount"
	FieldConsumptionKWh = "consumption_kwh"
	FieldProvider       = "provider"
	FieldDueDate        = "due_date"
	FieldInstallationID = "installation_id"
	FieldAddress        = "address"
	FieldCity           = "city"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as ISO-8601 (YYYY-MM-DD).
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("extraction: decode date: %w", err)
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fmt.Errorf("extraction: parse date %q: %w", raw, err)
	}
	d.Time = parsed
	return nil
}

// Values is the mutable draft of an extraction. Every field is independently nil
// when the source text did not contain it.
type Values struct {
	CustomerName   *string          `json:"customer_name"`
	TotalAmount    *decimal.Decimal `json:"total_amount"`
	ConsumptionKWh *float64         `json:"consumption_kwh"`
	Provider       *string          `json:"provider"`
	DueDate        *Date            `json:"due_date"`
	InstallationID *string          `json:"installation_id"`
	Address        *string          `json:"address"`
	City           *string          `json:"city"`
}

// ExtractedFields is the immutable product of one extraction. Accessors return
// copies; a new extraction always yields a new value.
type ExtractedFields struct {
	v Values
}

// NewExtractedFields freezes a draft. Blank strings are treated as absent.
func NewExtractedFields(v Values) ExtractedFields {
	return ExtractedFields{v: Values{
		CustomerName:   cloneString(v.CustomerName),
		TotalAmount:    cloneDecimal(v.TotalAmount),
		ConsumptionKWh: cloneFloat(v.ConsumptionKWh),
		Provider:       cloneString(v.Provider),
		DueDate:        cloneDate(v.DueDate),
		InstallationID: cloneString(v.InstallationID),
		Address:        cloneString(v.Address),
		City:           cloneString(v.City),
	}}
}

// Values returns a deep copy of the underlying draft.
func (f ExtractedFields) Values() Values {
	return NewExtractedFields(f.v).v
}

func (f ExtractedFields) CustomerName() (string, bool) { return deref(f.v.CustomerName) }
func (f ExtractedFields) Provider() (string, bool)     { return deref(f.v.Provider) }
func (f ExtractedFields) InstallationID() (string, bool) {
	return deref(f.v.InstallationID)
}
func (f ExtractedFields) Address() (string, bool) { return deref(f.v.Address) }
func (f ExtractedFields) City() (string, bool)    { return deref(f.v.City) }

func (f ExtractedFields) TotalAmount() (decimal.Decimal, bool) {
	if f.v.TotalAmount == nil {
		return decimal.Zero, false
	}
	return *f.v.TotalAmount, true
}

func (f ExtractedFields) ConsumptionKWh() (float64, bool) {
	if f.v.ConsumptionKWh == nil {
		return 0, false
	}
	return *f.v.ConsumptionKWh, true
}

func (f ExtractedFields) DueDate() (Date, bool) {
	if f.v.DueDate == nil {
		return Date{}, false
	}
	return *f.v.DueDate, true
}

// IsEmpty reports whether no field was extracted.
func (f ExtractedFields) IsEmpty() bool {
	return f.v.CustomerName == nil && f.v.TotalAmount == nil && f.v.ConsumptionKWh == nil &&
		f.v.Provider == nil && f.v.DueDate == nil && f.v.InstallationID == nil &&
		f.v.Address == nil && f.v.City == nil
}

// Present lists the names of populated fields in schema order.
func (f ExtractedFields) Present() []string {
	var out []string
	add := func(name string, ok bool) {
		if ok {
			out = append(out, name)
		}
	}
	add(FieldCustomerName, f.v.CustomerName != nil)
	add(FieldTotalAmount, f.v.TotalAmount != nil)
	add(FieldConsumptionKWh, f.v.ConsumptionKWh != nil)
	add(FieldProvider, f.v.Provider != nil)
	add(FieldDueDate, f.v.DueDate != nil)
	add(FieldInstallationID, f.v.InstallationID != nil)
	add(FieldAddress, f.v.Address != nil)
	add(FieldCity, f.v.City != nil)
	return out
}

func (f ExtractedFields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.v)
}

func (f *ExtractedFields) UnmarshalJSON(data []byte) error {
	var v Values
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = NewExtractedFields(v)
	return nil
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func cloneDate(d *Date) *Date {
	if d == nil || d.IsZero() {
		return nil
	}
	c := *d
	return &c
}
