package model

// Settings are the user-tunable planner options.
type Settings struct {
	HoursPerDay          int    `json:"hours_per_day"`
	RiskThreshold        int    `json:"risk_threshold"`
	NotificationLeadDays int    `json:"notification_lead_days"`
	SemesterStart        string `json:"semester_start"`
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	HoursPerDay          *int    `json:"hours_per_day,omitempty"`
	RiskThreshold        *int    `json:"risk_threshold,omitempty"`
	NotificationLeadDays *int    `json:"notification_lead_days,omitempty"`
	SemesterStart        *string `json:"semester_start,omitempty"`
}

// Apply merges p into s. Non-positive numbers are ignored.
func (s *Settings) Apply(p SettingsPatch) {
	if p.HoursPerDay != nil && *p.HoursPerDay > 0 {
		s.HoursPerDay = *p.HoursPerDay
	}
	if p.RiskThreshold != nil && *p.RiskThreshold > 0 {
		s.RiskThreshold = *p.RiskThreshold
	}
	if p.NotificationLeadDays != nil && *p.NotificationLeadDays >= 0 {
		s.NotificationLeadDays = *p.NotificationLeadDays
	}
	if p.SemesterStart != nil && *p.SemesterStart != "" {
		s.SemesterStart = *p.SemesterStart
	}
}

// FillDefaults sets zero fields from def.
func (s *Settings) FillDefaults(def Settings) {
	if s.HoursPerDay <= 0 {
		s.HoursPerDay = def.HoursPerDay
	}
	if s.RiskThreshold <= 0 {
		s.RiskThreshold = def.RiskThreshold
	}
	if s.NotificationLeadDays <= 0 {
		s.NotificationLeadDays = def.NotificationLeadDays
	}
	if s.SemesterStart == "" {
		s.SemesterStart = def.SemesterStart
	}
}
