// ABOUTME: Fixed spending and income categories seeded into every new database
// ABOUTME: Top-level categories have an empty parent; subcategories name their parent

package store

import (
	"context"
	"fmt"
)

type categorySeed struct {
	name        string
	description string
	isIncome    bool
	subs        []string
}

var defaultCategories = []categorySeed{
	{"Salary", "Regular employment income", true, []string{"Base Salary", "Overtime", "Bonus", "Commission"}},
	{"Freelance", "Contract and freelance work", true, []string{"Consulting", "Design Work", "Writing", "Programming"}},
	{"Investment Income", "Returns on investments", true, []string{"Dividends", "Interest", "Capital Gains", "Rental"}},
	{"Business Income", "Income from an owned business", true, nil},
	{"Rental Income", "Income from rented property", true, nil},
	{"Other Income", "Income that fits no other category", true, nil},

	{"Housing", "Rent, mortgage, and home costs", false, []string{"Rent", "Mortgage", "Property Tax", "HOA Fees", "Maintenance", "Utilities"}},
	{"Transportation", "Vehicles and transit", false, []string{"Car Payment", "Gas", "Insurance", "Maintenance", "Public Transport", "Parking"}},
	{"Food & Dining", "Groceries and eating out", false, []string{"Groceries", "Restaurants", "Takeout", "Coffee", "Alcohol"}},
	{"Healthcare", "Medical costs", false, []string{"Doctor Visits", "Dental", "Prescription", "Insurance", "Mental Health"}},
	{"Entertainment", "Leisure and travel", false, []string{"Movies", "Streaming", "Games", "Sports", "Hobbies", "Travel"}},
	{"Shopping", "Retail purchases", false, []string{"Clothing", "Electronics", "Home Goods", "Personal Care", "Gifts"}},
	{"Education", "Tuition and learning", false, []string{"Tuition", "Books", "Courses", "Training", "Supplies"}},
	{"Savings & Investment", "Money set aside", false, []string{"Emergency Fund", "Retirement", "Stocks", "Bonds", "Real Estate"}},
	{"Debt Payments", "Loan and card repayments", false, []string{"Credit Cards", "Student Loans", "Personal Loans", "Mortgage"}},
	{"Insurance", "Insurance premiums", false, []string{"Health", "Auto", "Home", "Life", "Disability"}},
	{"Taxes", "Income and other taxes", false, nil},
	{"Utilities", "Household services", false, []string{"Electric", "Gas", "Water", "Internet", "Phone", "Cable"}},
	{"Other Expenses", "Expenses that fit no other category", false, nil},
}

// seedCategories inserts the default categories. Existing rows are left alone.
func (s *SQLiteStore) seedCategories() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO spending_categories (category_name, parent_category, description, is_income, is_active)
		VALUES (?, ?, ?, ?, 1)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range defaultCategories {
		res, err := stmt.Exec(c.name, "", c.description, c.isIncome)
		if err != nil {
			return fmt.Errorf("inserting category %q: %w", c.name, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)

		for _, sub := range c.subs {
			res, err := stmt.Exec(sub, c.name, "", c.isIncome)
			if err != nil {
				return fmt.Errorf("inserting subcategory %q: %w", sub, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if inserted > 0 {
		s.logger.Info("seeded spending categories", "count", inserted)
	}
	return nil
}

// ListCategories returns active categories, income first, top-level before subcategories.
func (s *SQLiteStore) ListCategories(ctx context.Context, incomeOnly bool) ([]*Category, error) {
	query := `
		SELECT category_name, parent_category, COALESCE(description, ''), is_income, is_active
		FROM spending_categories
		WHERE is_active = 1`
	if incomeOnly {
		query += " AND is_income = 1"
	}
	query += " ORDER BY is_income DESC, parent_category ASC, category_name ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.ParentCategory, &c.Description, &c.IsIncome, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}
	return categories, nil
}

// DefaultCategories returns the seed list as Category values, in the same order
// ListCategories produces.
func DefaultCategories(incomeOnly bool) []*Category {
	var income, expense []*Category
	for _, c := range defaultCategories {
		if incomeOnly && !c.isIncome {
			continue
		}
		bucket := &expense
		if c.isIncome {
			bucket = &income
		}
		*bucket = append(*bucket, &Category{Name: c.name, Description: c.description, IsIncome: c.isIncome, IsActive: true})
		for _, sub := range c.subs {
			*bucket = append(*bucket, &Category{Name: sub, ParentCategory: c.name, IsIncome: c.isIncome, IsActive: true})
		}
	}
	sortCategories(income)
	sortCategories(expense)
	return append(income, expense...)
}
