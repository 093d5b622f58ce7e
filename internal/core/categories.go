package core

import (
	"regexp"
	"strings"
)

const (
	MaxDescriptionLen       = 200
	GoalCategoryPrefix      = "Goal: "
	GoalTransferDescription = "Transfer to Goal"
)

var (
	ExpenseCategories = []string{"Bill", "Food and Drink", "Transport", "Shopping", "Investment", "Utility", "Education"}
	IncomeCategories  = []string{"Salary", "Gift", "Passive Income", "Refund"}

	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

// NormalizeCategory trims the category; any non-empty text is accepted so
// users can type their own category next to the catalogues.
func NormalizeCategory(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyCategory
	}
	return s, nil
}

// GoalCategory is the category of the expense written by a goal deposit.
func GoalCategory(goalName string) string {
	return GoalCategoryPrefix + goalName
}

// NormalizeCurrency upper-cases an ISO 4217 code; an empty code means home.
func NormalizeCurrency(code, home string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return home, nil
	}
	if !currencyCode.MatchString(code) {
		return "", InvalidInput("currency must be a 3-letter ISO code")
	}
	return code, nil
}
