package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// MetadataKind tags the shape of entry metadata.
type MetadataKind string

const (
	MetadataAccrual    MetadataKind = "accrual"
	MetadataSettlement MetadataKind = "settlement"
	MetadataManual     MetadataKind = "manual"
)

// Metadata is one of AccrualMetadata, SettlementMetadata or ManualMetadata.
type Metadata interface {
	Kind() MetadataKind
	period(fallback time.Time) Period
}

// AccrualMetadata marks an entry recognised in an accounting month before cash moves.
type AccrualMetadata struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Category string `json:"category,omitempty"`
}

// Kind implements Metadata.
func (AccrualMetadata) Kind() MetadataKind { return MetadataAccrual }

func (m AccrualMetadata) period(fallback time.Time) Period {
	p := Period{Year: m.Year, Month: m.Month}
	if p.Valid() {
		return p
	}
	return PeriodOf(fallback)
}

// SettlementMetadata marks an entry that pays off an earlier accrual.
// SettledAccountCode names the expense or income account the cash relates to.
type SettlementMetadata struct {
	MonthSettled       string `json:"monthSettled"`
	SettledAccountCode string `json:"settledAccountCode,omitempty"`
	Category           string `json:"category,omitempty"`
}

// Kind implements Metadata.
func (SettlementMetadata) Kind() MetadataKind { return MetadataSettlement }

func (m SettlementMetadata) period(fallback time.Time) Period {
	if t, err := time.Parse("2006-01", m.MonthSettled); err == nil {
		return PeriodOf(t)
	}
	return PeriodOf(fallback)
}

// ManualMetadata carries free text for manual journals and an optional period override.
type ManualMetadata struct {
	Note     string `json:"note,omitempty"`
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
	Category string `json:"category,omitempty"`
}

// Kind implements Metadata.
func (ManualMetadata) Kind() MetadataKind { return MetadataManual }

func (m ManualMetadata) period(fallback time.Time) Period {
	p := Period{Year: m.Year, Month: m.Month}
	if p.Valid() {
		return p
	}
	return PeriodOf(fallback)
}

// PeriodFor returns the canonical period of an entry with the given metadata and date.
func PeriodFor(meta Metadata, date time.Time) Period {
	if meta == nil {
		return PeriodOf(date)
	}
	return meta.period(date)
}

// CategoryOf returns the explicit category carried by meta, if any.
func CategoryOf(meta Metadata) string {
	switch m := meta.(type) {
	case AccrualMetadata:
		return m.Category
	case SettlementMetadata:
		return m.Category
	case ManualMetadata:
		return m.Category
	}
	return ""
}

type metadataEnvelope struct {
	Kind MetadataKind    `json:"kind,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeMetadata serialises meta as {"kind":...,"data":{...}}.
func EncodeMetadata(meta Metadata) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode metadata: %w", err)
	}
	return json.Marshal(metadataEnvelope{Kind: meta.Kind(), Data: data})
}

// DecodeMetadata parses the output of EncodeMetadata.
func DecodeMetadata(raw []byte) (Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("ledger: decode metadata: %w", err)
	}
	switch env.Kind {
	case "":
		return nil, nil
	case MetadataAccrual:
		var m AccrualMetadata
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case MetadataSettlement:
		var m SettlementMetadata
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case MetadataManual:
		var m ManualMetadata
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("ledger: unknown metadata kind %q", env.Kind)
}

func decodeData(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("ledger: decode metadata: %w", err)
	}
	return nil
}
