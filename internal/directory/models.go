package directory

// CollectionPoint is a declared collection surface: which data elements may
// be collected, under which purposes, and the retention/expiry policy for
// each. Owned by the directory-management flow; read-only to this service.
type CollectionPoint struct {
	ID            string           `json:"cp_id" bson:"_id" yaml:"cp_id"`
	OrgID         string           `json:"org_id" bson:"org_id" yaml:"org_id"`
	ApplicationID string           `json:"application_id" bson:"application_id" yaml:"application_id"`
	Name          string           `json:"cp_name" bson:"cp_name" yaml:"cp_name"`
	Status        string           `json:"cp_status" bson:"cp_status" yaml:"cp_status"`
	DataElements  []DataElementDef `json:"data_elements" bson:"data_elements" yaml:"data_elements"`
}

// DataElementDef declares one collectable data element and its default
// retention/expiry policy in days. Purpose-level overrides supersede these.
type DataElementDef struct {
	ID            string       `json:"data_element" bson:"data_element" yaml:"data_element"`
	Title         string       `json:"data_element_title" bson:"data_element_title" yaml:"data_element_title"`
	Description   string       `json:"data_element_description" bson:"data_element_description" yaml:"data_element_description"`
	Owners        []string     `json:"data_owner" bson:"data_owner" yaml:"data_owner"`
	LegalBasis    string       `json:"legal_basis" bson:"legal_basis" yaml:"legal_basis"`
	RetentionDays int          `json:"retention_period" bson:"retention_period" yaml:"retention_period"`
	ExpiryDays    int          `json:"expiry" bson:"expiry" yaml:"expiry"`
	Purposes      []PurposeDef `json:"purposes" bson:"purposes" yaml:"purposes"`
}

// PurposeDef declares one processing purpose under a data element. Zero
// RetentionDays/ExpiryDays mean "inherit the element default".
type PurposeDef struct {
	ID              string `json:"purpose_id" bson:"purpose_id" yaml:"purpose_id"`
	Description     string `json:"purpose_description" bson:"purpose_description" yaml:"purpose_description"`
	Language        string `json:"purpose_language" bson:"purpose_language" yaml:"purpose_language"`
	Mandatory       bool   `json:"mandatory,omitempty" bson:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Revocable       bool   `json:"revocable,omitempty" bson:"revocable,omitempty" yaml:"revocable,omitempty"`
	LegallyRequired bool   `json:"legally_required,omitempty" bson:"legally_required,omitempty" yaml:"legally_required,omitempty"`
	CrossBorder     bool   `json:"cross_border,omitempty" bson:"cross_border,omitempty" yaml:"cross_border,omitempty"`
	Shared          bool   `json:"shared,omitempty" bson:"shared,omitempty" yaml:"shared,omitempty"`
	Encrypted       bool   `json:"encrypted,omitempty" bson:"encrypted,omitempty" yaml:"encrypted,omitempty"`
	RetentionDays   int    `json:"retention_period,omitempty" bson:"retention_period,omitempty" yaml:"retention_period,omitempty"`
	ExpiryDays      int    `json:"expiry,omitempty" bson:"expiry,omitempty" yaml:"expiry,omitempty"`
}

// Element returns the declared data element with the given id.
func (cp *CollectionPoint) Element(id string) (*DataElementDef, bool) {
	for i := range cp.DataElements {
		if cp.DataElements[i].ID == id {
			return &cp.DataElements[i], true
		}
	}
	return nil, false
}

// Purpose returns the declared purpose with the given id.
func (de *DataElementDef) Purpose(id string) (*PurposeDef, bool) {
	for i := range de.Purposes {
		if de.Purposes[i].ID == id {
			return &de.Purposes[i], true
		}
	}
	return nil, false
}

// RetentionFor resolves the retention period in days for a purpose,
// preferring the purpose-level override.
func (de *DataElementDef) RetentionFor(p *PurposeDef) int {
	if p != nil && p.RetentionDays > 0 {
		return p.RetentionDays
	}
	return de.RetentionDays
}

// ExpiryFor resolves the expiry period in days for a purpose, preferring the
// purpose-level override.
func (de *DataElementDef) ExpiryFor(p *PurposeDef) int {
	if p != nil && p.ExpiryDays > 0 {
		return p.ExpiryDays
	}
	return de.ExpiryDays
}
