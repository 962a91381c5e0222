package parsing

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/resume-screener/internal/textextract"
)

// SkillCategory groups skills the way ExtractedCvData reports them
type SkillCategory string

const (
	CategoryTechnical   SkillCategory = "technical"
	CategoryProgramming SkillCategory = "programming"
	CategoryLanguage    SkillCategory = "language"
)

type taxonomyEntry struct {
	Canonical string
	Category  SkillCategory
	// Aliases are folded and matched on word boundaries.
	Aliases []string
	// Exact aliases are matched case-sensitively against the raw text,
	// for names that are also common words ("Go", "R").
	Exact []string
}

var taxonomy = []taxonomyEntry{
	// programming languages
	{Canonical: "Go", Category: CategoryProgramming, Aliases: []string{"golang", "go lang"}, Exact: []string{"Go", "GO"}},
	{Canonical: "Python", Category: CategoryProgramming, Aliases: []string{"python", "python3"}},
	{Canonical: "Java", Category: CategoryProgramming, Aliases: []string{"java"}},
	{Canonical: "JavaScript", Category: CategoryProgramming, Aliases: []string{"javascript", "js", "ecmascript", "es6"}},
	{Canonical: "TypeScript", Category: CategoryProgramming, Aliases: []string{"typescript"}},
	{Canonical: "C++", Category: CategoryProgramming, Aliases: []string{"c++", "cpp"}},
	{Canonical: "C#", Category: CategoryProgramming, Aliases: []string{"c#", "csharp", "c sharp"}},
	{Canonical: "C", Category: CategoryProgramming, Exact: []string{"C"}},
	{Canonical: "PHP", Category: CategoryProgramming, Aliases: []string{"php"}},
	{Canonical: "Ruby", Category: CategoryProgramming, Aliases: []string{"ruby"}},
	{Canonical: "Rust", Category: CategoryProgramming, Aliases: []string{"rust", "rustlang"}},
	{Canonical: "Kotlin", Category: CategoryProgramming, Aliases: []string{"kotlin"}},
	{Canonical: "Swift", Category: CategoryProgramming, Aliases: []string{"swift"}},
	{Canonical: "Scala", Category: CategoryProgramming, Aliases: []string{"scala"}},
	{Canonical: "Dart", Category: CategoryProgramming, Aliases: []string{"dart"}},
	{Canonical: "R", Category: CategoryProgramming, Exact: []string{"R"}},
	{Canonical: "SQL", Category: CategoryProgramming, Aliases: []string{"sql", "t-sql", "pl/sql", "plsql"}},
	{Canonical: "Bash", Category: CategoryProgramming, Aliases: []string{"bash", "shell script", "shell scripting"}},

	// frameworks, platforms and tools
	{Canonical: "React", Category: CategoryTechnical, Aliases: []string{"react", "react.js", "reactjs"}},
	{Canonical: "Angular", Category: CategoryTechnical, Aliases: []string{"angular", "angularjs"}},
	{Canonical: "Vue", Category: CategoryTechnical, Aliases: []string{"vue", "vue.js", "vuejs"}},
	{Canonical: "Next.js", Category: CategoryTechnical, Aliases: []string{"next.js", "nextjs"}},
	{Canonical: "Node.js", Category: CategoryTechnical, Aliases: []string{"node.js", "nodejs", "node"}},
	{Canonical: "Express", Category: CategoryTechnical, Aliases: []string{"express.js", "expressjs"}},
	{Canonical: "Spring Boot", Category: CategoryTechnical, Aliases: []string{"spring boot", "springboot", "spring framework", "spring mvc"}},
	{Canonical: "Django", Category: CategoryTechnical, Aliases: []string{"django"}},
	{Canonical: "Flask", Category: CategoryTechnical, Aliases: []string{"flask"}},
	{Canonical: "FastAPI", Category: CategoryTechnical, Aliases: []string{"fastapi"}},
	{Canonical: ".NET", Category: CategoryTechnical, Aliases: []string{".net", "dotnet", "asp.net", ".net core"}},
	{Canonical: "Laravel", Category: CategoryTechnical, Aliases: []string{"laravel"}},
	{Canonical: "Docker", Category: CategoryTechnical, Aliases: []string{"docker", "containerization"}},
	{Canonical: "Kubernetes", Category: CategoryTechnical, Aliases: []string{"kubernetes", "k8s"}},
	{Canonical: "Terraform", Category: CategoryTechnical, Aliases: []string{"terraform"}},
	{Canonical: "AWS", Category: CategoryTechnical, Aliases: []string{"aws", "amazon web services"}},
	{Canonical: "Azure", Category: CategoryTechnical, Aliases: []string{"azure", "microsoft azure"}},
	{Canonical: "GCP", Category: CategoryTechnical, Aliases: []string{"gcp", "google cloud", "google cloud platform"}},
	{Canonical: "PostgreSQL", Category: CategoryTechnical, Aliases: []string{"postgresql", "postgres", "psql"}},
	{Canonical: "MySQL", Category: CategoryTechnical, Aliases: []string{"mysql", "mariadb"}},
	{Canonical: "MongoDB", Category: CategoryTechnical, Aliases: []string{"mongodb", "mongo"}},
	{Canonical: "Redis", Category: CategoryTechnical, Aliases: []string{"redis"}},
	{Canonical: "Elasticsearch", Category: CategoryTechnical, Aliases: []string{"elasticsearch", "elastic search", "elk"}},
	{Canonical: "Kafka", Category: CategoryTechnical, Aliases: []string{"kafka", "apache kafka"}},
	{Canonical: "RabbitMQ", Category: CategoryTechnical, Aliases: []string{"rabbitmq"}},
	{Canonical: "GraphQL", Category: CategoryTechnical, Aliases: []string{"graphql"}},
	{Canonical: "REST", Category: CategoryTechnical, Aliases: []string{"restful", "rest api", "restful api", "rest apis"}},
	{Canonical: "gRPC", Category: CategoryTechnical, Aliases: []string{"grpc"}},
	{Canonical: "Git", Category: CategoryTechnical, Aliases: []string{"git", "github", "gitlab"}},
	{Canonical: "CI/CD", Category: CategoryTechnical, Aliases: []string{"ci/cd", "cicd", "continuous integration", "github actions"}},
	{Canonical: "Jenkins", Category: CategoryTechnical, Aliases: []string{"jenkins"}},
	{Canonical: "Linux", Category: CategoryTechnical, Aliases: []string{"linux", "ubuntu", "centos"}},
	{Canonical: "Microservices", Category: CategoryTechnical, Aliases: []string{"microservices", "microservice", "micro-services"}},
	{Canonical: "Machine Learning", Category: CategoryTechnical, Aliases: []string{"machine learning", "ml", "hoc may"}},
	{Canonical: "Deep Learning", Category: CategoryTechnical, Aliases: []string{"deep learning"}},
	{Canonical: "TensorFlow", Category: CategoryTechnical, Aliases: []string{"tensorflow"}},
	{Canonical: "PyTorch", Category: CategoryTechnical, Aliases: []string{"pytorch"}},
	{Canonical: "Pandas", Category: CategoryTechnical, Aliases: []string{"pandas"}},
	{Canonical: "HTML", Category: CategoryTechnical, Aliases: []string{"html", "html5"}},
	{Canonical: "CSS", Category: CategoryTechnical, Aliases: []string{"css", "css3", "scss", "sass"}},
	{Canonical: "Tailwind CSS", Category: CategoryTechnical, Aliases: []string{"tailwind", "tailwindcss"}},
	{Canonical: "Figma", Category: CategoryTechnical, Aliases: []string{"figma"}},
	{Canonical: "Agile", Category: CategoryTechnical, Aliases: []string{"agile", "scrum", "kanban"}},
	{Canonical: "Jira", Category: CategoryTechnical, Aliases: []string{"jira"}},
	{Canonical: "Distributed Systems", Category: CategoryTechnical, Aliases: []string{"distributed systems", "distributed system"}},

	// spoken languages
	{Canonical: "English", Category: CategoryLanguage, Aliases: []string{"english", "tieng anh", "toeic", "ielts", "toefl"}},
	{Canonical: "Vietnamese", Category: CategoryLanguage, Aliases: []string{"vietnamese", "tieng viet"}},
	{Canonical: "Japanese", Category: CategoryLanguage, Aliases: []string{"japanese", "tieng nhat", "jlpt"}},
	{Canonical: "Chinese", Category: CategoryLanguage, Aliases: []string{"chinese", "mandarin", "tieng trung", "hsk"}},
	{Canonical: "Korean", Category: CategoryLanguage, Aliases: []string{"korean", "tieng han", "topik"}},
	{Canonical: "French", Category: CategoryLanguage, Aliases: []string{"french", "tieng phap"}},
	{Canonical: "German", Category: CategoryLanguage, Aliases: []string{"german", "tieng duc"}},
}

// skillNormalizations maps variants that are safe to normalize but too
// ambiguous to search for in free text
var skillNormalizations = map[string]string{
	"golanglang": "Go",
	"ts":         "TypeScript",
	"k8":         "Kubernetes",
	"postgre":    "PostgreSQL",
	"nextjs":     "Next.js",
}

type compiledEntry struct {
	taxonomyEntry
	folded *regexp.Regexp
	exact  *regexp.Regexp
}

var (
	aliasIndex = make(map[string]*taxonomyEntry)
	compiled   []compiledEntry
)

func init() {
	for i := range taxonomy {
		e := &taxonomy[i]
		aliasIndex[strings.ToLower(e.Canonical)] = e
		for _, a := range e.Aliases {
			aliasIndex[a] = e
		}

		c := compiledEntry{taxonomyEntry: *e}
		if len(e.Aliases) > 0 {
			c.folded = boundaryRegexp(e.Aliases, looseBoundary)
		}
		if len(e.Exact) > 0 {
			c.exact = boundaryRegexp(e.Exact, strictBoundary)
		}
		compiled = append(compiled, c)
	}
}

// Boundaries are negated classes of the characters that may not touch an
// alias. A dot may follow ("AWS.") but not precede ("react.js" is not "js").
type boundary struct{ before, after string }

var (
	looseBoundary = boundary{before: `[^\p{L}\p{N}+#.]`, after: `[^\p{L}\p{N}+#]`}
	// single-letter and common-word names also refuse "R&D" and "Go-to"
	strictBoundary = boundary{before: `[^\p{L}\p{N}+#&'.\-]`, after: `[^\p{L}\p{N}+#&'\-]`}
)

func boundaryRegexp(aliases []string, b boundary) *regexp.Regexp {
	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}
	// longest first so "spring boot" wins over "spring"
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?:^|` + b.before + `)(` + strings.Join(quoted, "|") + `)(?:` + b.after + `|$)`)
}

// NormalizeSkillName normalizes a skill name to its canonical form
func NormalizeSkillName(skillName string) string {
	if skillName == "" {
		return ""
	}

	normalized := strings.TrimSpace(skillName)
	if normalized == "" {
		return ""
	}

	lower := strings.ToLower(normalized)
	if e, ok := aliasIndex[lower]; ok {
		return e.Canonical
	}
	if e, ok := aliasIndex[textextract.Fold(normalized)]; ok {
		return e.Canonical
	}
	if canonical, ok := skillNormalizations[lower]; ok {
		return canonical
	}

	// All-caps single words that aren't known acronyms get a capital first letter only
	if normalized == strings.ToUpper(normalized) && len(normalized) > 1 {
		if !strings.Contains(lower, " ") {
			return strings.ToUpper(normalized[:1]) + strings.ToLower(normalized[1:])
		}
	}

	// Mixed case is kept as written
	if normalized != strings.ToUpper(normalized) && normalized != strings.ToLower(normalized) {
		return normalized
	}

	if normalized == strings.ToLower(normalized) && !strings.Contains(normalized, " ") {
		return strings.ToUpper(normalized[:1]) + normalized[1:]
	}

	return normalized
}

// SkillCategoryOf returns the taxonomy category of a canonical skill name
func SkillCategoryOf(name string) (SkillCategory, bool) {
	e, ok := aliasIndex[strings.ToLower(NormalizeSkillName(name))]
	if !ok {
		return "", false
	}
	return e.Category, true
}

// SkillMatch is one taxonomy skill found in text
type SkillMatch struct {
	Name     string
	Category SkillCategory
	Offset   int // byte offset of the first mention in the folded text
}

// MatchSkills finds every taxonomy skill mentioned in text, ordered by
// first mention. Each canonical skill appears once.
func MatchSkills(text string) []SkillMatch {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	folded := textextract.Fold(text)

	var out []SkillMatch
	for _, c := range compiled {
		offset := -1
		if c.folded != nil {
			if m := c.folded.FindStringSubmatchIndex(folded); m != nil {
				offset = m[2]
			}
		}
		if c.exact != nil {
			if m := c.exact.FindStringSubmatchIndex(text); m != nil && (offset < 0 || m[2] < offset) {
				// raw and folded offsets differ only after diacritics; close enough for ordering
				offset = m[2]
			}
		}
		if offset >= 0 {
			out = append(out, SkillMatch{Name: c.Canonical, Category: c.Category, Offset: offset})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// NormalizeSkills canonicalizes and deduplicates skill names, keeping the
// first spelling's position
func NormalizeSkills(names []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(names))
	for _, n := range names {
		s := NormalizeSkillName(n)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
