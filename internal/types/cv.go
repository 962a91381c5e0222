package types

// PersonalInfo holds contact facts found in a résumé
type PersonalInfo struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// ProfessionalInfo holds career facts found in a résumé
type ProfessionalInfo struct {
	YearsOfExperience float64 `json:"years_of_experience,omitempty"`
	CurrentTitle      string  `json:"current_title,omitempty"`
	CurrentCompany    string  `json:"current_company,omitempty"`
	EducationLevel    string  `json:"education_level,omitempty"` // associate, bachelor, master, phd
	Institution       string  `json:"institution,omitempty"`
	GraduationYear    int     `json:"graduation_year,omitempty"`
}

// ExtractedCvData is the flat extraction result used to create or update a candidate
type ExtractedCvData struct {
	Personal             PersonalInfo     `json:"personal"`
	Professional         ProfessionalInfo `json:"professional"`
	TechnicalSkills      []string         `json:"technical_skills,omitempty"`
	ProgrammingLanguages []string         `json:"programming_languages,omitempty"`
	LanguageSkills       []string         `json:"language_skills,omitempty"`
}

// ExperienceEntry is one position held by the candidate.
// Dates use the "YYYY-MM" layout; EndDate is "present" for a current role.
type ExperienceEntry struct {
	Title       string  `json:"title,omitempty"`
	Company     string  `json:"company,omitempty"`
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	Years       float64 `json:"years,omitempty"`
	Description string  `json:"description,omitempty"`
}

// EducationEntry is one degree or program
type EducationEntry struct {
	Institution string `json:"institution,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Level       string `json:"level,omitempty"`
	Field       string `json:"field,omitempty"`
	StartYear   int    `json:"start_year,omitempty"`
	EndYear     int    `json:"end_year,omitempty"`
}

// ProcessedCvData is the full NLP extraction result. Any field may be empty.
// Experience and Education are ordered most recent first.
type ProcessedCvData struct {
	ExtractedCvData
	TotalYearsOfExperience float64           `json:"total_years_of_experience"`
	Experience             []ExperienceEntry `json:"experience,omitempty"`
	Education              []EducationEntry  `json:"education,omitempty"`
	Summary                string            `json:"summary,omitempty"`
}

// AllSkills returns technical skills and programming languages without duplicates
func (p *ProcessedCvData) AllSkills() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{p.TechnicalSkills, p.ProgrammingLanguages} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
