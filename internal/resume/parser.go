// Package resume extracts text from uploaded PDF resumes and pulls
// structured profile hints out of it: skills, education and a research
// summary. Parsing is best effort; callers keep whatever fields came back.
package resume

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"labmatch/internal/errs"
)

// ExtractPDFText returns the plain text of a PDF file.
func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errs.InvalidInputf("cannot read pdf: %v", err)
	}
	defer f.Close()
	var b strings.Builder
	reader, err := r.GetPlainText()
	if err != nil {
		return "", errs.InvalidInputf("cannot extract pdf text: %v", err)
	}
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", errs.InvalidInputf("pdf contains no extractable text")
	}
	return text, nil
}

// Section names recognized in resumes. Headers are matched on their own line,
// optionally followed by a colon.
var sectionPatterns = map[string]*regexp.Regexp{
	"education":  regexp.MustCompile(`(?i)^\s*(education|academic background|academics)\s*:?\s*$`),
	"experience": regexp.MustCompile(`(?i)^\s*((work |professional )?experience|employment( history)?)\s*:?\s*$`),
	"research":   regexp.MustCompile(`(?i)^\s*(research( (experience|interests|projects))?|publications|projects)\s*:?\s*$`),
	"skills":     regexp.MustCompile(`(?i)^\s*((technical |core )?skills|competencies|technologies)\s*:?\s*$`),
}

// skillKeywords is the vocabulary matched against resume text. Matches are
// whole-word and case-insensitive.
var skillKeywords = []string{
	"python", "java", "c++", "javascript", "typescript", "go", "rust", "r",
	"matlab", "sql", "bash", "git", "docker", "kubernetes", "linux", "aws",
	"machine learning", "deep learning", "neural networks", "computer vision",
	"natural language processing", "nlp", "reinforcement learning",
	"data analysis", "data visualization", "statistics", "bioinformatics",
	"pytorch", "tensorflow", "keras", "scikit-learn", "pandas", "numpy",
	"react", "node.js", "flask", "django", "postgresql", "mongodb",
	"pcr", "crispr", "microscopy", "spectroscopy", "cell culture",
	"western blot", "flow cytometry", "gis", "cad", "solidworks", "labview",
}

// Parsed holds whatever structure the parser could recover.
type Parsed struct {
	Sections        map[string]string `json:"-"`
	Skills          []string          `json:"skills,omitempty"`
	University      string            `json:"university,omitempty"`
	Major           string            `json:"major,omitempty"`
	GraduationYear  int               `json:"graduationYear,omitempty"`
	ResearchSummary string            `json:"researchSummary,omitempty"`
}

// Parse splits resume text into sections and extracts profile hints.
func Parse(text string) *Parsed {
	p := &Parsed{Sections: sectionize(text)}
	p.Skills = matchSkills(text)
	edu := p.Sections["education"]
	if edu == "" {
		edu = text
	}
	p.University = findUniversity(edu)
	p.Major = findMajor(edu)
	p.GraduationYear = findGraduationYear(edu)
	p.ResearchSummary = summarize(p.Sections["research"], p.Sections["experience"])
	return p
}

func sectionize(text string) map[string]string {
	sections := map[string]string{}
	current := ""
	var buf strings.Builder
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(sections[current] + "\n" + buf.String())
		}
		buf.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		matched := ""
		for name, re := range sectionPatterns {
			if re.MatchString(line) {
				matched = name
				break
			}
		}
		if matched != "" {
			flush()
			current = matched
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return sections
}

func matchSkills(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range skillKeywords {
		re := regexp.MustCompile(`(?i)(^|[^a-z0-9])` + regexp.QuoteMeta(kw) + `($|[^a-z0-9+.])`)
		if re.MatchString(lower) {
			found = append(found, kw)
		}
	}
	return found
}

var universityRe = regexp.MustCompile(`(?im)^.*?\b([A-Z][A-Za-z.&' -]+ (University|College|Institute of Technology|Institute)|University of [A-Z][A-Za-z' -]+)\b.*$`)

func findUniversity(text string) string {
	m := universityRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var majorRe = regexp.MustCompile(`(?i)\b(?:B\.?A\.?|B\.?S\.?|M\.?S\.?|M\.?A\.?|Ph\.?D\.?|Bachelor(?: of (?:Science|Arts))?|Master(?: of (?:Science|Arts))?|major(?:ing)?)\s+(?:degree\s+)?in\s+([A-Za-z][A-Za-z& -]{2,60})`)

func findMajor(text string) string {
	m := majorRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	major := strings.TrimSpace(m[1])
	// cut trailing sentence fragments
	for _, sep := range []string{",", ".", ";", " at ", " from "} {
		if i := strings.Index(major, sep); i > 0 {
			major = major[:i]
		}
	}
	return strings.TrimSpace(major)
}

var yearRe = regexp.MustCompile(`\b(20[0-4][0-9])\b`)

// findGraduationYear picks the latest plausible year mentioned near the
// education text, tolerating "Expected 2027" style entries.
func findGraduationYear(text string) int {
	best := 0
	horizon := time.Now().Year() + 8
	for _, m := range yearRe.FindAllString(text, -1) {
		y, _ := strconv.Atoi(m)
		if y > best && y <= horizon {
			best = y
		}
	}
	return best
}

const summaryLimit = 500

func summarize(research, experience string) string {
	src := research
	if src == "" {
		src = experience
	}
	src = strings.Join(strings.Fields(src), " ")
	if len(src) > summaryLimit {
		src = src[:summaryLimit]
		if i := strings.LastIndex(src, " "); i > 0 {
			src = src[:i]
		}
	}
	return src
}
