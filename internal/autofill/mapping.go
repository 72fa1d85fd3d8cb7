package autofill

import "strings"

// Platform is the application form vendor detected from the apply URL.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformUnknown    Platform = "unknown"
)

// Supported reports whether a field-mapping table exists for the platform.
// Workday forms use dynamic markup that breaks selector-based filling, so it
// is detected but never filled.
func (p Platform) Supported() bool {
	return p == PlatformGreenhouse || p == PlatformLever
}

// DetectPlatform classifies the apply URL.
func DetectPlatform(applyURL string) Platform {
	lower := strings.ToLower(applyURL)
	switch {
	case strings.Contains(lower, "greenhouse.io") || strings.Contains(lower, "greenhouse"):
		return PlatformGreenhouse
	case strings.Contains(lower, "jobs.lever.co") || strings.Contains(lower, "lever"):
		return PlatformLever
	case strings.Contains(lower, "myworkdayjobs") || strings.Contains(lower, "workday"):
		return PlatformWorkday
	default:
		return PlatformUnknown
	}
}

// Profile is the applicant's read-only identity record. Loading it is the
// CLI's concern; the orchestrator only reads it.
type Profile struct {
	FirstName  string `json:"first_name" mapstructure:"first_name"`
	LastName   string `json:"last_name" mapstructure:"last_name"`
	FullName   string `json:"full_name" mapstructure:"full_name"`
	Email      string `json:"email" mapstructure:"email"`
	Phone      string `json:"phone" mapstructure:"phone"`
	Location   string `json:"location" mapstructure:"location"`
	ResumePath string `json:"resume_path" mapstructure:"resume_path"`
	LinkedIn   string `json:"linkedin" mapstructure:"linkedin"`
	GitHub     string `json:"github" mapstructure:"github"`
	Website    string `json:"website" mapstructure:"website"`

	Skills []string `json:"skills" mapstructure:"skills"`
}

// fieldMapping binds one profile value to the CSS selectors that locate it on
// a platform's form, in preference order.
type fieldMapping struct {
	Name      string
	Value     func(*Profile) string
	Selectors []string
	File      bool
}

var greenhouseFields = []fieldMapping{
	{
		Name:  "first_name",
		Value: func(p *Profile) string { return p.FirstName },
		Selectors: []string{
			`input[name="first_name"]`,
			`input[id="first_name"]`,
			`input[name*="first"]`,
		},
	},
	{
		Name:  "last_name",
		Value: func(p *Profile) string { return p.LastName },
		Selectors: []string{
			`input[name="last_name"]`,
			`input[id="last_name"]`,
			`input[name*="last"]`,
		},
	},
	{
		Name:  "email",
		Value: func(p *Profile) string { return p.Email },
		Selectors: []string{
			`input[type="email"]`,
			`input[name="email"]`,
			`input[name*="email"]`,
		},
	},
	{
		Name:  "phone",
		Value: func(p *Profile) string { return p.Phone },
		Selectors: []string{
			`input[type="tel"]`,
			`input[name="phone"]`,
			`input[name*="phone"]`,
		},
	},
	{
		Name:  "resume",
		Value: func(p *Profile) string { return p.ResumePath },
		File:  true,
		Selectors: []string{
			`input[type="file"][name*="resume"]`,
			`input[type="file"][accept*=".pdf"]`,
			`input[type="file"]`,
		},
	},
	{
		Name:  "linkedin",
		Value: func(p *Profile) string { return p.LinkedIn },
		Selectors: []string{
			`input[name*="linkedin"]`,
			`input[id*="linkedin"]`,
		},
	},
	{
		Name:  "github",
		Value: func(p *Profile) string { return p.GitHub },
		Selectors: []string{
			`input[name*="github"]`,
			`input[id*="github"]`,
		},
	},
	{
		Name:  "website",
		Value: func(p *Profile) string { return p.Website },
		Selectors: []string{
			`input[name*="website"]`,
			`input[name*="portfolio"]`,
		},
	},
}

// Lever forms ask for one full-name field instead of first/last.
var leverFields = []fieldMapping{
	{
		Name:  "full_name",
		Value: func(p *Profile) string { return p.FullName },
		Selectors: []string{
			`input[name="name"]`,
			`input[name="fullName"]`,
		},
	},
	{
		Name:  "email",
		Value: func(p *Profile) string { return p.Email },
		Selectors: []string{
			`input[type="email"]`,
			`input[name="email"]`,
		},
	},
	{
		Name:  "phone",
		Value: func(p *Profile) string { return p.Phone },
		Selectors: []string{
			`input[type="tel"]`,
			`input[name="phone"]`,
		},
	},
	{
		Name:  "resume",
		Value: func(p *Profile) string { return p.ResumePath },
		File:  true,
		Selectors: []string{
			`input[type="file"]`,
			`input[name="resume"]`,
		},
	},
	{
		Name:  "linkedin",
		Value: func(p *Profile) string { return p.LinkedIn },
		Selectors: []string{
			`input[name="urls[LinkedIn]"]`,
			`input[name*="LinkedIn"]`,
		},
	},
	{
		Name:  "github",
		Value: func(p *Profile) string { return p.GitHub },
		Selectors: []string{
			`input[name="urls[GitHub]"]`,
			`input[name*="GitHub"]`,
		},
	},
	{
		Name:  "website",
		Value: func(p *Profile) string { return p.Website },
		Selectors: []string{
			`input[name="urls[Portfolio]"]`,
			`input[name*="website"]`,
		},
	},
}

func fieldsFor(platform Platform) []fieldMapping {
	switch platform {
	case PlatformGreenhouse:
		return greenhouseFields
	case PlatformLever:
		return leverFields
	default:
		return nil
	}
}
