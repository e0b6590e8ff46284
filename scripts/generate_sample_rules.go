package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"discount-rules/internal/model"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// generateSampleRules writes a gzipped JSON-lines rule file for cmd/import.
// The last line is deliberately invalid (both amount and percentage) so the
// import report shows one failure.
func main() {
	dataDir := "data/rules"

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	lunchStart := model.NewTimeOfDay(11, 30, 0)
	lunchEnd := model.NewTimeOfDay(14, 0, 0)

	rules := []model.RuleInput{
		{
			Code:     "WELCOME10",
			Name:     "Welcome discount",
			EMCCode:  "EMC-100",
			Type:     model.RuleTypeCustomer,
			Amount:   lo.ToPtr(decimal.NewFromInt(10)),
			IsActive: true,
			UsagePolicyFields: model.UsagePolicyFields{
				OneTime: true,
			},
		},
		{
			Code:       "LUNCH15",
			Name:       "Weekday lunch",
			EMCCode:    "EMC-200",
			Type:       model.RuleTypeCustomer,
			Percentage: lo.ToPtr(decimal.NewFromInt(15)),
			Scope:      model.Scope{CountryIDs: []string{"AE"}, BrandIDs: []string{"b1"}},
			Schedule: model.Schedule{
				DaysOfWeek: []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday},
				StartTime:  &lunchStart,
				EndTime:    &lunchEnd,
				TimeZone:   "Asia/Dubai",
			},
			IsActive: true,
			UsagePolicyFields: model.UsagePolicyFields{
				Limitation:     true,
				MaxUses:        lo.ToPtr(1),
				CooldownPeriod: lo.ToPtr("P1D"),
			},
		},
		{
			Code:       "STAFF50",
			Name:       "Staff meal",
			EMCCode:    "EMC-300",
			Type:       model.RuleTypeInternal,
			Percentage: lo.ToPtr(decimal.NewFromInt(50)),
			IsActive:   true,
			UsagePolicyFields: model.UsagePolicyFields{
				Limitation:     true,
				MaxUses:        lo.ToPtr(3),
				CooldownPeriod: lo.ToPtr("P7D"),
			},
		},
		{
			Code:       "HAPPYHOUR",
			Name:       "Happy hour",
			EMCCode:    "EMC-400",
			Type:       model.RuleTypeCustomer,
			Percentage: lo.ToPtr(decimal.NewFromInt(20)),
			Schedule: model.Schedule{
				DaysOfWeek: []model.Weekday{model.Friday, model.Saturday},
			},
			IsActive: true,
		},
		{
			Code:       "BROKEN",
			Name:       "Broken definition",
			EMCCode:    "EMC-999",
			Type:       model.RuleTypeCustomer,
			Amount:     lo.ToPtr(decimal.NewFromInt(5)),
			Percentage: lo.ToPtr(decimal.NewFromInt(5)),
		},
	}

	filePath := filepath.Join(dataDir, "sample_rules.gz")
	if err := createRuleFile(filePath, rules); err != nil {
		log.Fatalf("Failed to create %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d rules\n", filePath, len(rules))
	fmt.Println("\nImport with:")
	fmt.Printf("  go run ./cmd/import rules --source file %s\n", filePath)
	fmt.Println("\nExpected: 4 created, 1 failed (BROKEN sets both amount and percentage)")
}

func createRuleFile(filePath string, rules []model.RuleInput) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	enc := json.NewEncoder(gzipWriter)
	for _, rule := range rules {
		if err := enc.Encode(rule); err != nil {
			return fmt.Errorf("failed to write rule %s: %w", rule.Code, err)
		}
	}

	return nil
}
