package models

import dErrors "concur/pkg/domain-errors"

// PurposeSubmission is the caller's decision for one purpose.
type PurposeSubmission struct {
	PurposeID   string   `json:"purpose_id"`
	Granted     bool     `json:"consent_status"`
	Shared      bool     `json:"shared"`
	Processors  []string `json:"data_processors"`
	CrossBorder bool     `json:"cross_border"`
}

// ElementSubmission groups purpose decisions under one data element.
type ElementSubmission struct {
	DataElementID string              `json:"data_element"`
	Consents      []PurposeSubmission `json:"consents"`
}

// SubmitRequest is a full consent submission against one collection point.
type SubmitRequest struct {
	PrincipalID       string              `json:"dp_id"`
	FiduciaryID       string              `json:"df_id"`
	ApplicationID     string              `json:"application_id"`
	CollectionPointID string              `json:"cp_id"`
	Language          string              `json:"consent_language"`
	LinkedAgreement   string              `json:"linked_agreement,omitempty"`
	Scope             []ElementSubmission `json:"consent_scope"`
}

// Validate checks structural completeness before any collaborator is called.
func (r *SubmitRequest) Validate() error {
	switch {
	case r.PrincipalID == "":
		return dErrors.New(dErrors.CodeBadRequest, "dp_id is required")
	case r.FiduciaryID == "":
		return dErrors.New(dErrors.CodeBadRequest, "df_id is required")
	case r.CollectionPointID == "":
		return dErrors.New(dErrors.CodeBadRequest, "cp_id is required")
	case len(r.Scope) == 0:
		return dErrors.New(dErrors.CodeBadRequest, "consent_scope must not be empty")
	}
	for _, el := range r.Scope {
		if el.DataElementID == "" {
			return dErrors.New(dErrors.CodeBadRequest, "data_element is required on every scope entry")
		}
		if len(el.Consents) == 0 {
			return dErrors.Newf(dErrors.CodeBadRequest, "data element %s has no consents", el.DataElementID)
		}
		for _, c := range el.Consents {
			if c.PurposeID == "" {
				return dErrors.Newf(dErrors.CodeBadRequest, "data element %s has a consent without purpose_id", el.DataElementID)
			}
		}
	}
	return nil
}

// StatusRequest asks for a single-purpose consent transition.
type StatusRequest struct {
	PrincipalID string `json:"dp_id"`
	FiduciaryID string `json:"df_id"`
	PurposeID   string `json:"purpose_id"`
	Granted     bool   `json:"consent_status"`
}

// Validate checks structural completeness.
func (r *StatusRequest) Validate() error {
	switch {
	case r.PrincipalID == "":
		return dErrors.New(dErrors.CodeBadRequest, "dp_id is required")
	case r.FiduciaryID == "":
		return dErrors.New(dErrors.CodeBadRequest, "df_id is required")
	case r.PurposeID == "":
		return dErrors.New(dErrors.CodeBadRequest, "purpose_id is required")
	}
	return nil
}
