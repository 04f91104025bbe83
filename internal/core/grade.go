package core

import "fmt"

// Grade 碳影响等级，序数类型，F < D < C < B < A
type Grade int

const (
	GradeF Grade = iota
	GradeD
	GradeC
	GradeB
	GradeA
)

var AllGrades = []Grade{GradeF, GradeD, GradeC, GradeB, GradeA}

var gradeNames = map[Grade]string{
	GradeF: "F",
	GradeD: "D",
	GradeC: "C",
	GradeB: "B",
	GradeA: "A",
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

func (g Grade) Valid() bool {
	return g >= GradeF && g <= GradeA
}

// ParseGrade 解析等级名称
func ParseGrade(s string) (Grade, error) {
	for g, name := range gradeNames {
		if name == s {
			return g, nil
		}
	}
	return GradeF, fmt.Errorf("unknown grade: %q", s)
}
