package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Agency identifies the government body (organismo) that issues a procedure.
type Agency string

const (
	AgencyANMAT    Agency = "ANMAT"
	AgencySENASA   Agency = "SENASA"
	AgencyENACOM   Agency = "ENACOM"
	AgencyINAL     Agency = "INAL"
	AgencyINV      Agency = "INV"
	AgencySEDRONAR Agency = "SEDRONAR"
	AgencyOther    Agency = "OTRO"
)

// TramiteType is a read-mostly catalog entry describing one kind of procedure.
type TramiteType struct {
	ID                string     `db:"id" json:"id"`
	Code              string     `db:"code" json:"code"`
	Name              string     `db:"name" json:"name"`
	Agency            Agency     `db:"agency" json:"agency"`
	Description       string     `db:"description" json:"description"`
	SLADays           int        `db:"sla_days" json:"sla_days"`
	ValidityMonths    int        `db:"validity_months" json:"validity_months"`
	Steps             StringList `db:"steps" json:"steps"`
	RequiredDocuments StringList `db:"required_documents" json:"required_documents"`
	Active            bool       `db:"active" json:"active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// TramiteTypeFilter narrows catalog listings.
type TramiteTypeFilter struct {
	Agency   *Agency
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// StringList is an ordered list of labels persisted as a JSONB array.
type StringList []string

// Value marshals the list to JSON for persistence.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON array into the list.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal string list: %w", err)
	}
	*l = items
	return nil
}
