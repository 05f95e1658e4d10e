package resume

import (
	"strings"
	"testing"
)

const sampleResume = `Jane Doe
jane@student.edu

Education
Stanford University
B.S. in Computer Science, Expected 2027
GPA: 3.8

Research Experience
Undergraduate researcher in the Vision Lab working on medical image
segmentation with convolutional neural networks. Built PyTorch training
pipelines and evaluated models on public CT datasets.

Skills
Python, C++, PyTorch, scikit-learn, Docker, SQL
`

func TestParseSections(t *testing.T) {
	p := Parse(sampleResume)
	if _, ok := p.Sections["education"]; !ok {
		t.Fatalf("education section not found")
	}
	if _, ok := p.Sections["research"]; !ok {
		t.Fatalf("research section not found")
	}
	if _, ok := p.Sections["skills"]; !ok {
		t.Fatalf("skills section not found")
	}
}

func TestParseEducation(t *testing.T) {
	p := Parse(sampleResume)
	if p.University != "Stanford University" {
		t.Fatalf("university: %q", p.University)
	}
	if p.Major != "Computer Science" {
		t.Fatalf("major: %q", p.Major)
	}
	if p.GraduationYear != 2027 {
		t.Fatalf("graduation year: %d", p.GraduationYear)
	}
}

func TestParseSkills(t *testing.T) {
	p := Parse(sampleResume)
	want := map[string]bool{"python": true, "c++": true, "pytorch": true, "sql": true, "docker": true}
	got := map[string]bool{}
	for _, s := range p.Skills {
		got[s] = true
	}
	for k := range want {
		if !got[k] {
			t.Fatalf("skill %q not detected in %v", k, p.Skills)
		}
	}
	if got["java"] {
		t.Fatalf("java must not match inside javascript-free text")
	}
}

func TestSkillsWholeWordMatching(t *testing.T) {
	// "javascript" must not produce a "java" hit, "rust" not from "trust"
	p := Parse("Built frontends in JavaScript. I trust the process.")
	for _, s := range p.Skills {
		if s == "java" || s == "rust" {
			t.Fatalf("substring false positive: %v", p.Skills)
		}
	}
}

func TestParseResearchSummary(t *testing.T) {
	p := Parse(sampleResume)
	if !strings.Contains(p.ResearchSummary, "medical image") {
		t.Fatalf("summary missing research text: %q", p.ResearchSummary)
	}
	if strings.Contains(p.ResearchSummary, "\n") {
		t.Fatalf("summary should be collapsed to one line")
	}
}

func TestSummaryTruncation(t *testing.T) {
	long := "Research\n" + strings.Repeat("word ", 300)
	p := Parse(long)
	if len(p.ResearchSummary) > summaryLimit {
		t.Fatalf("summary too long: %d", len(p.ResearchSummary))
	}
	if strings.HasSuffix(p.ResearchSummary, " ") {
		t.Fatalf("summary has trailing space")
	}
}

func TestParseUnstructuredText(t *testing.T) {
	p := Parse("just a plain paragraph about nothing in particular")
	if len(p.Sections) != 0 {
		t.Fatalf("no sections expected, got %v", p.Sections)
	}
	if p.University != "" || p.GraduationYear != 0 {
		t.Fatalf("nothing should be extracted: %+v", p)
	}
}

func TestFindGraduationYearPicksLatestPlausible(t *testing.T) {
	if y := findGraduationYear("enrolled 2023, expected graduation 2027"); y != 2027 {
		t.Fatalf("got %d", y)
	}
	if y := findGraduationYear("in 2049 the lab was founded"); y != 0 {
		t.Fatalf("implausible year accepted: %d", y)
	}
}
