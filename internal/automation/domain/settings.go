package domain

// Settings are the per-account automation toggles after defaults are applied.
type Settings struct {
	EstimateFollowUps bool `json:"estimate_followups"`
	InvoiceFollowUps  bool `json:"invoice_followups"`
	JobCloseout       bool `json:"job_closeout"`
	ReviewRequests    bool `json:"review_requests"`
	LeadResponse      bool `json:"lead_response"`
}

// Overrides are the stored per-account values. A nil field means "use default".
type Overrides struct {
	EstimateFollowUps *bool `json:"estimate_followups,omitempty"`
	InvoiceFollowUps  *bool `json:"invoice_followups,omitempty"`
	JobCloseout       *bool `json:"job_closeout,omitempty"`
	ReviewRequests    *bool `json:"review_requests,omitempty"`
	LeadResponse      *bool `json:"lead_response,omitempty"`
}

// DefaultSettings has every automation switched off; accounts opt in.
func DefaultSettings() Settings {
	return Settings{}
}

// Merge applies overrides on top of defaults.
func Merge(defaults Settings, overrides Overrides) Settings {
	merged := defaults
	pick(&merged.EstimateFollowUps, overrides.EstimateFollowUps)
	pick(&merged.InvoiceFollowUps, overrides.InvoiceFollowUps)
	pick(&merged.JobCloseout, overrides.JobCloseout)
	pick(&merged.ReviewRequests, overrides.ReviewRequests)
	pick(&merged.LeadResponse, overrides.LeadResponse)
	return merged
}

// Patch layers a partial update on top of stored overrides.
func (o Overrides) Patch(update Overrides) Overrides {
	patched := o
	if update.EstimateFollowUps != nil {
		patched.EstimateFollowUps = update.EstimateFollowUps
	}
	if update.InvoiceFollowUps != nil {
		patched.InvoiceFollowUps = update.InvoiceFollowUps
	}
	if update.JobCloseout != nil {
		patched.JobCloseout = update.JobCloseout
	}
	if update.ReviewRequests != nil {
		patched.ReviewRequests = update.ReviewRequests
	}
	if update.LeadResponse != nil {
		patched.LeadResponse = update.LeadResponse
	}
	return patched
}

func pick(dst *bool, override *bool) {
	if override != nil {
		*dst = *override
	}
}

// Enabled reports the toggle that gates scheduling of t.
func (s Settings) Enabled(t Type) bool {
	switch t {
	case TypeEstimateFollowUp:
		return s.EstimateFollowUps
	case TypeInvoiceFollowUp:
		return s.InvoiceFollowUps
	case TypeJobCloseout:
		return s.JobCloseout
	case TypeReviewRequest:
		return s.ReviewRequests
	case TypeLeadResponse:
		return s.LeadResponse
	default:
		return false
	}
}
