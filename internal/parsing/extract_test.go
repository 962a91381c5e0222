package parsing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/types"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }

const englishCV = `NGUYEN VAN AN
Backend Developer
Email: an.nguyen@example.com | Phone: +84 901 234 567
Address: 12 Le Loi, District 1, Ho Chi Minh City

SUMMARY
Backend engineer with 5+ years of experience building Go microservices on AWS.

WORK EXPERIENCE
Senior Backend Engineer at Acme Software
Jan 2021 - Present
- Built payment services in Golang and PostgreSQL
- Ran workloads on Kubernetes (k8s)
Backend Developer | FPT Software
06/2018 - 12/2020
- Developed REST APIs with Node.js

EDUCATION
Ho Chi Minh City University of Technology
Bachelor of Science in Computer Science, 2014 - 2018

SKILLS
Languages: Go, Python, JavaScript
Tools: Docker, Redis, Event Sourcing
English (TOEIC 850)`

const vietnameseCV = `Họ và tên: Trần Thị Bích
Email: bich.tran@example.vn
Số điện thoại: 0912 345 678

KINH NGHIỆM LÀM VIỆC
Công ty TNHH ABC - Lập trình viên Java
T3/2019 - Hiện tại
- Phát triển hệ thống bằng Java và Spring Boot

HỌC VẤN
Đại học Bách Khoa Hà Nội
Cử nhân Công nghệ thông tin, 2015 - 2019

KỸ NĂNG
Java, Spring Boot, MySQL
Tiếng Anh giao tiếp`

func newTestExtractor() *Extractor {
	return NewExtractor(nil).WithClock(fixedNow)
}

func TestExtract_EnglishCV(t *testing.T) {
	cv := newTestExtractor().Extract(englishCV)
	require.NotNil(t, cv)

	assert.Equal(t, types.PersonalInfo{
		Name:    "Nguyen Van An",
		Email:   "an.nguyen@example.com",
		Phone:   "+84 901 234 567",
		Address: "12 Le Loi, District 1, Ho Chi Minh City",
	}, cv.Personal)

	assert.Equal(t, []string{"Go", "Python", "JavaScript"}, cv.ProgrammingLanguages)
	assert.Equal(t, []string{"Microservices", "AWS", "PostgreSQL", "Kubernetes", "REST", "Node.js", "Docker", "Redis", "Event Sourcing"}, cv.TechnicalSkills)
	assert.Equal(t, []string{"English"}, cv.LanguageSkills)

	require.Len(t, cv.Experience, 2)
	assert.Equal(t, types.ExperienceEntry{
		Title:       "Senior Backend Engineer",
		Company:     "Acme Software",
		StartDate:   "2021-01",
		EndDate:     Present,
		Years:       4,
		Description: "Built payment services in Golang and PostgreSQL\nRan workloads on Kubernetes (k8s)",
	}, cv.Experience[0])
	assert.Equal(t, "Backend Developer", cv.Experience[1].Title)
	assert.Equal(t, "FPT Software", cv.Experience[1].Company)
	assert.Equal(t, "2018-06", cv.Experience[1].StartDate)
	assert.Equal(t, "2020-12", cv.Experience[1].EndDate)
	assert.InDelta(t, 2.5, cv.Experience[1].Years, 1e-9)

	// 48 + 30 months beats the stated 5+ years
	assert.InDelta(t, 6.5, cv.TotalYearsOfExperience, 1e-9)
	assert.Equal(t, cv.TotalYearsOfExperience, cv.Professional.YearsOfExperience)

	require.Len(t, cv.Education, 1)
	assert.Equal(t, types.EducationEntry{
		Institution: "Ho Chi Minh City University of Technology",
		Degree:      "Bachelor of Science in Computer Science",
		Level:       LevelBachelor,
		Field:       "Computer Science",
		StartYear:   2014,
		EndYear:     2018,
	}, cv.Education[0])

	assert.Equal(t, "Senior Backend Engineer", cv.Professional.CurrentTitle)
	assert.Equal(t, "Acme Software", cv.Professional.CurrentCompany)
	assert.Equal(t, LevelBachelor, cv.Professional.EducationLevel)
	assert.Equal(t, 2018, cv.Professional.GraduationYear)
	assert.Equal(t, "Backend engineer with 5+ years of experience building Go microservices on AWS.", cv.Summary)
}

func TestExtract_VietnameseCV(t *testing.T) {
	cv := newTestExtractor().Extract(vietnameseCV)

	assert.Equal(t, "Trần Thị Bích", cv.Personal.Name)
	assert.Equal(t, "0912 345 678", cv.Personal.Phone)

	require.Len(t, cv.Experience, 1)
	assert.Equal(t, "Lập trình viên Java", cv.Experience[0].Title)
	assert.Equal(t, "Công ty TNHH ABC", cv.Experience[0].Company)
	assert.Equal(t, "2019-03", cv.Experience[0].StartDate)
	assert.Equal(t, Present, cv.Experience[0].EndDate)

	require.Len(t, cv.Education, 1)
	assert.Equal(t, "Đại học Bách Khoa Hà Nội", cv.Education[0].Institution)
	assert.Equal(t, LevelBachelor, cv.Education[0].Level)
	assert.Equal(t, 2019, cv.Education[0].EndYear)

	assert.Equal(t, []string{"Java"}, cv.ProgrammingLanguages)
	assert.Equal(t, []string{"Spring Boot", "MySQL"}, cv.TechnicalSkills)
	assert.Equal(t, []string{"English"}, cv.LanguageSkills)
	assert.InDelta(t, 5.8, cv.TotalYearsOfExperience, 1e-9)
}

func TestExtract_PartialInput(t *testing.T) {
	cv := newTestExtractor().Extract("contact me at someone@example.org")
	require.NotNil(t, cv)
	assert.Equal(t, "someone@example.org", cv.Personal.Email)
	assert.Empty(t, cv.Experience)
	assert.Empty(t, cv.Education)
	assert.Zero(t, cv.TotalYearsOfExperience)

	empty := newTestExtractor().Extract("   \n\t")
	require.NotNil(t, empty)
	assert.Empty(t, empty.AllSkills())
}

func TestExtract_NoExperienceHeadingIgnoresEducationDates(t *testing.T) {
	const text = `Le Minh
minh.le@example.com

Senior Backend Engineer at Acme Software
Jan 2021 - Present
- Built billing services in Go

EDUCATION
Ho Chi Minh City University of Technology
Bachelor of Science in Computer Science, 2014 - 2018`

	cv := newTestExtractor().Extract(text)
	require.NotEmpty(t, cv.Experience)
	for _, exp := range cv.Experience {
		assert.False(t, strings.HasPrefix(exp.StartDate, "2014"), "education range counted as work")
	}
	assert.InDelta(t, 4.0, cv.TotalYearsOfExperience, 1e-9)

	require.Len(t, cv.Education, 1)
	assert.Equal(t, 2018, cv.Education[0].EndYear)
}

func TestMergedYears_UnsortedOverlapping(t *testing.T) {
	month := func(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }
	ranges := []DateRange{
		{Start: month(2020, time.January), End: month(2022, time.January)},
		{Start: month(2015, time.January), End: month(2016, time.January)},
		{Start: month(2021, time.January), End: month(2023, time.July)},
	}
	// 12 months, then 2020-01..2023-07 merged into 42
	assert.InDelta(t, 4.5, mergedYears(ranges), 1e-9)
	assert.Equal(t, month(2020, time.January), ranges[0].Start, "input order is kept")
	assert.Zero(t, mergedYears(nil))
}

func TestExtract_StatedYearsWithoutDates(t *testing.T) {
	cv := newTestExtractor().Extract("Senior engineer with 7 years of professional experience in Python")
	assert.InDelta(t, 7.0, cv.TotalYearsOfExperience, 1e-9)
	assert.Equal(t, []string{"Python"}, cv.ProgrammingLanguages)
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor()
	assert.Equal(t, e.Extract(englishCV), e.Extract(englishCV))
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"jan 2020", "2020-01", true},
		{"september, 2019", "2019-09", true},
		{"sept. 2019", "2019-09", true},
		{"03/2020", "2020-03", true},
		{"2020-03", "2020-03", true},
		{"2019", "2019-01", true},
		{"t3/2020", "2020-03", true},
		{"thang 12/2021", "2021-12", true},
		{"13/2020", "", false},
		{"1890", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseMonth(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, formatMonth(got))
			}
		})
	}
}

func TestFindDateRange(t *testing.T) {
	now := fixedNow()

	r, ok := findDateRange("Engineer, Mar 2019 – Dec 2021", now)
	require.True(t, ok)
	assert.Equal(t, "2019-03", formatMonth(r.Start))
	assert.Equal(t, "2021-12", formatMonth(r.End))
	assert.False(t, r.Current)

	r, ok = findDateRange("2016 to now", now)
	require.True(t, ok)
	assert.True(t, r.Current)
	assert.Equal(t, "2025-01", formatMonth(r.End))

	_, ok = findDateRange("2021 - 2019", now)
	assert.False(t, ok, "end before start")

	_, ok = findDateRange("no dates here", now)
	assert.False(t, ok)
}

func TestMergedYears_CountsOverlapOnce(t *testing.T) {
	m := func(s string) time.Time {
		v, _ := time.Parse(monthLayout, s)
		return v
	}
	ranges := []DateRange{
		{Start: m("2018-01"), End: m("2020-01")},
		{Start: m("2019-01"), End: m("2021-01")},
		{Start: m("2022-01"), End: m("2022-07")},
	}
	assert.InDelta(t, 3.5, mergedYears(ranges), 1e-9)
	assert.Zero(t, mergedYears(nil))
}

func TestDetectEducationLevel(t *testing.T) {
	assert.Equal(t, LevelPhD, DetectEducationLevel("Ph.D. in Physics, M.Sc. in Math"))
	assert.Equal(t, LevelMaster, DetectEducationLevel("MBA, 2020"))
	assert.Equal(t, LevelBachelor, DetectEducationLevel("Cử nhân Kinh tế"))
	assert.Equal(t, LevelAssociate, DetectEducationLevel("Cao đẳng FPT Polytechnic"))
	assert.Equal(t, LevelHighSchool, DetectEducationLevel("THPT Lê Hồng Phong"))
	assert.Empty(t, DetectEducationLevel("Self-taught"))

	assert.Greater(t, DegreeRank(LevelMaster), DegreeRank(LevelBachelor))
	assert.Zero(t, DegreeRank("unknown"))
}

func TestRequiredYears(t *testing.T) {
	assert.InDelta(t, 3.0, RequiredYears("At least 3 years of experience with Go"), 1e-9)
	assert.InDelta(t, 2.0, RequiredYears("Có ít nhất 2 năm kinh nghiệm"), 1e-9)
	assert.Zero(t, RequiredYears("Fresh graduates welcome"))
}

func TestSplitHeadline(t *testing.T) {
	tests := []struct {
		in, title, company string
	}{
		{"Software Engineer at Google", "Software Engineer", "Google"},
		{"Acme Corp | QA Engineer", "QA Engineer", "Acme Corp"},
		{"Data Analyst, Vietcombank Bank", "Data Analyst", "Vietcombank Bank"},
		{"Freelancer", "Freelancer", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			title, company := splitHeadline(tt.in)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.company, company)
		})
	}
}
