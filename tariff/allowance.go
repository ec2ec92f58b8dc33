package tariff

import "github.com/shopspring/decimal"

// Care-grade flat allowances ("Sachleistung"): the fixed monthly amount the
// payer contributes per care grade, deducted from the payer invoice. Grade 1
// carries no in-kind benefit and is intentionally absent.
var gradeAllowances = map[int]decimal.Decimal{
	2: mustDecimal("796.00"),
	3: mustDecimal("1497.00"),
	4: mustDecimal("1859.00"),
	5: mustDecimal("2299.00"),
}

// AllowanceForGrade returns the monthly flat allowance for a care grade.
// The second return is false for grades without an in-kind benefit.
func AllowanceForGrade(grade int) (decimal.Decimal, bool) {
	a, ok := gradeAllowances[grade]
	return a, ok
}

// Grades returns the care grades that carry a flat allowance, ascending.
func Grades() []int {
	return []int{2, 3, 4, 5}
}
