package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"overlay-engine/core/utils"
)

// Document field names of the known row fields.
const (
	FieldID            = "Id"
	FieldCategory      = "Category"
	FieldKey           = "Key"
	FieldName          = "Name"
	FieldAverageAmount = "AverageAmount"
	FieldDuration      = "Duration"
	FieldDatasets      = "Datasets"
	FieldImage         = "Image"
	FieldRarity        = "Rarity"
	FieldBuyProfit     = "TPBuyProfit"
	FieldSellProfit    = "TPSellProfit"
	FieldBuyProfitHr   = "TPBuyProfitHr"
	FieldSellProfitHr  = "TPSellProfitHr"
	FieldBestBuy       = "BestBuy"
	FieldBestSell      = "BestSell"
)

// CategoryInternal marks rows that aggregate another table at zero tax.
const CategoryInternal = "INTERNAL"

// CategoryNegative marks cost rows that are never taxed.
const CategoryNegative = "NEGATIVE"

// TotalName is the Name of the aggregated summary row.
const TotalName = "TOTAL"

// CoinID is the item id of raw currency.
const CoinID = 1

// Field is one entry of a row's open extension map.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Row is one line of a table. Known fields are typed and optional; every other
// field is kept verbatim, in document order, in Extra. The decoded field order
// is remembered so encoding keeps the document layout.
type Row struct {
	ID            *int64
	Category      *string
	Key           *string
	Name          *string
	AverageAmount *float64
	Duration      *float64
	Datasets      *string
	Image         *string
	Rarity        *string
	BuyProfit     *int64
	SellProfit    *int64
	BuyProfitHr   *int64
	SellProfitHr  *int64
	BestBuy       *string
	BestSell      *string

	Extra []Field

	order []string
}

// RefKind classifies how a row is priced.
type RefKind int

const (
	// RefLeaf rows have no key and are priced by Id. A category alone only
	// selects the tax.
	RefLeaf RefKind = iota
	// RefInternal rows aggregate another table at zero tax through a formula.
	RefInternal
	// RefComposite rows aggregate another table at their own tax.
	RefComposite
	// RefUnclassified rows carry a key without a category.
	RefUnclassified
)

func (k RefKind) String() string {
	switch k {
	case RefLeaf:
		return "leaf"
	case RefInternal:
		return "internal"
	case RefComposite:
		return "composite"
	case RefUnclassified:
		return "unclassified"
	}
	return fmt.Sprintf("RefKind(%d)", int(k))
}

// ItemID returns the item id, or 0 when absent.
func (r *Row) ItemID() int64 {
	if r.ID == nil {
		return 0
	}
	return *r.ID
}

// CategoryValue returns the trimmed category.
func (r *Row) CategoryValue() string { return trimmed(r.Category) }

// KeyValue returns the trimmed reference key.
func (r *Row) KeyValue() string { return trimmed(r.Key) }

// NameValue returns the row name.
func (r *Row) NameValue() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// Quantity returns AverageAmount, defaulting to 1 when the column is absent.
func (r *Row) Quantity() float64 {
	if r.AverageAmount == nil {
		return 1
	}
	return *r.AverageAmount
}

// DurationHours returns Duration, or 0 when absent.
func (r *Row) DurationHours() float64 {
	if r.Duration == nil {
		return 0
	}
	return *r.Duration
}

// DatasetsHint returns the trimmed aggregation hint.
func (r *Row) DatasetsHint() string { return trimmed(r.Datasets) }

// Kind classifies the row's reference.
func (r *Row) Kind() RefKind {
	cat, key := r.CategoryValue(), r.KeyValue()
	switch {
	case strings.EqualFold(cat, CategoryInternal):
		return RefInternal
	case key == "":
		return RefLeaf
	case cat != "":
		return RefComposite
	default:
		return RefUnclassified
	}
}

// IsTotal reports whether the row is the aggregated summary row.
func (r *Row) IsTotal() bool {
	return strings.EqualFold(strings.TrimSpace(r.NameValue()), TotalName)
}

// Clone returns a deep copy that shares no memory with r.
func (r *Row) Clone() Row {
	c := Row{
		ID:            clonePtr(r.ID),
		Category:      clonePtr(r.Category),
		Key:           clonePtr(r.Key),
		Name:          clonePtr(r.Name),
		AverageAmount: clonePtr(r.AverageAmount),
		Duration:      clonePtr(r.Duration),
		Datasets:      clonePtr(r.Datasets),
		Image:         clonePtr(r.Image),
		Rarity:        clonePtr(r.Rarity),
		BuyProfit:     clonePtr(r.BuyProfit),
		SellProfit:    clonePtr(r.SellProfit),
		BuyProfitHr:   clonePtr(r.BuyProfitHr),
		SellProfitHr:  clonePtr(r.SellProfitHr),
		BestBuy:       clonePtr(r.BestBuy),
		BestSell:      clonePtr(r.BestSell),
	}
	if len(r.order) > 0 {
		c.order = append([]string(nil), r.order...)
	}
	if len(r.Extra) > 0 {
		c.Extra = make([]Field, len(r.Extra))
		for i, f := range r.Extra {
			c.Extra[i] = Field{Name: f.Name, Value: append(json.RawMessage(nil), f.Value...)}
		}
	}
	return c
}

// CloneRows deep-copies a row slice.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i := range rows {
		out[i] = rows[i].Clone()
	}
	return out
}

// UnmarshalJSON decodes one row object, keeping unknown fields in order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row must be an object, got %v", tok)
	}

	*r = Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if err := r.set(name, raw); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		r.remember(name)
	}

	_, err = dec.Token()
	return err
}

func (r *Row) set(name string, raw json.RawMessage) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch name {
	case FieldID:
		r.ID = looseInt(v)
	case FieldCategory:
		r.Category = looseString(v)
	case FieldKey:
		r.Key = looseString(v)
	case FieldName:
		r.Name = looseString(v)
	case FieldAverageAmount:
		r.AverageAmount = looseFloat(v)
	case FieldDuration:
		r.Duration = looseFloat(v)
	case FieldDatasets:
		r.Datasets = looseString(v)
	case FieldImage:
		r.Image = looseString(v)
	case FieldRarity:
		r.Rarity = looseString(v)
	case FieldBuyProfit:
		r.BuyProfit = looseInt(v)
	case FieldSellProfit:
		r.SellProfit = looseInt(v)
	case FieldBuyProfitHr:
		r.BuyProfitHr = looseInt(v)
	case FieldSellProfitHr:
		r.SellProfitHr = looseInt(v)
	case FieldBestBuy:
		r.BestBuy = looseString(v)
	case FieldBestSell:
		r.BestSell = looseString(v)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		r.SetExtra(name, buf.Bytes())
	}
	return nil
}

// SetExtra sets an extension field, replacing an existing one in place.
func (r *Row) SetExtra(name string, value json.RawMessage) {
	for i := range r.Extra {
		if r.Extra[i].Name == name {
			r.Extra[i].Value = value
			return
		}
	}
	r.Extra = append(r.Extra, Field{Name: name, Value: value})
}

func (r *Row) remember(name string) {
	for _, n := range r.order {
		if n == name {
			return
		}
	}
	r.order = append(r.order, name)
}

type knownField struct {
	name  string
	value any
	set   bool
}

func (r *Row) known() []knownField {
	return []knownField{
		{FieldID, r.ID, r.ID != nil},
		{FieldCategory, r.Category, r.Category != nil},
		{FieldKey, r.Key, r.Key != nil},
		{FieldName, r.Name, r.Name != nil},
		{FieldAverageAmount, r.AverageAmount, r.AverageAmount != nil},
		{FieldDuration, r.Duration, r.Duration != nil},
		{FieldDatasets, r.Datasets, r.Datasets != nil},
		{FieldImage, r.Image, r.Image != nil},
		{FieldRarity, r.Rarity, r.Rarity != nil},
		{FieldBuyProfit, r.BuyProfit, r.BuyProfit != nil},
		{FieldSellProfit, r.SellProfit, r.SellProfit != nil},
		{FieldBuyProfitHr, r.BuyProfitHr, r.BuyProfitHr != nil},
		{FieldSellProfitHr, r.SellProfitHr, r.SellProfitHr != nil},
		{FieldBestBuy, r.BestBuy, r.BestBuy != nil},
		{FieldBestSell, r.BestSell, r.BestSell != nil},
	}
}

// MarshalJSON encodes the fields in decoded document order. Known fields set
// later follow in a fixed order, then extension fields added later, so equal
// rows always encode to equal bytes.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	written := make(map[string]bool, len(r.order))

	known := r.known()
	byName := make(map[string]knownField, len(known))
	for _, k := range known {
		byName[k.name] = k
	}
	extras := make(map[string]json.RawMessage, len(r.Extra))
	for _, f := range r.Extra {
		extras[f.Name] = f.Value
	}

	writeKnown := func(k knownField) error {
		b, err := json.Marshal(k.value)
		if err != nil {
			return fmt.Errorf("field %s: %w", k.name, err)
		}
		written[k.name] = true
		return writeRaw(&buf, &first, k.name, b)
	}

	for _, name := range r.order {
		if k, ok := byName[name]; ok {
			if k.set {
				if err := writeKnown(k); err != nil {
					return nil, err
				}
			}
			continue
		}
		if v, ok := extras[name]; ok {
			written[name] = true
			if err := writeRaw(&buf, &first, name, v); err != nil {
				return nil, err
			}
		}
	}

	for _, k := range known {
		if !k.set || written[k.name] {
			continue
		}
		if err := writeKnown(k); err != nil {
			return nil, err
		}
	}

	for _, f := range r.Extra {
		if written[f.Name] {
			continue
		}
		if err := writeRaw(&buf, &first, f.Name, f.Value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeRaw(buf *bytes.Buffer, first *bool, name string, value []byte) error {
	if !*first {
		buf.WriteByte(',')
	}
	*first = false
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	if len(value) == 0 {
		buf.WriteString("null")
		return nil
	}
	buf.Write(value)
	return nil
}

func looseInt(v any) *int64 {
	f, ok := utils.ToFloat(v)
	if !ok {
		return nil
	}
	i := int64(f)
	return &i
}

func looseFloat(v any) *float64 {
	f, ok := utils.ToFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func looseString(v any) *string {
	if v == nil {
		return nil
	}
	s := utils.ToString(v)
	return &s
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
