package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/app"
	"github.com/odyssey-erp/coopledger/internal/integration"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/db"
)

// Seeds a demo cooperative: schema, chart of accounts, monthly periods for the
// current year and a handful of member transactions. Safe to run repeatedly.
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	tenant, err := strconv.ParseInt(getenv("SEED_TENANT", "1"), 10, 64)
	if err != nil {
		log.Fatalf("SEED_TENANT: %v", err)
	}

	ctx := context.Background()
	logger := app.NewLogger(cfg)
	ledger, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer ledger.Close(logger)

	fmt.Println("→ Migrating schema...")
	if _, err := db.Migrate(ctx, ledger.Pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Println("→ Seeding chart of accounts...")
	res, err := ledger.Accounts.SeedDefaults(ctx, tenant, 0)
	if err != nil {
		log.Fatalf("seed accounts: %v", err)
	}
	fmt.Printf("  %d created, %d existing\n", res.Created, res.Existing)

	fmt.Println("→ Seeding periods...")
	if err := seedPeriods(ctx, ledger.Periods, tenant, time.Now().UTC().Year()); err != nil {
		log.Fatalf("seed periods: %v", err)
	}

	fmt.Println("→ Seeding member activity...")
	if err := seedActivity(ctx, ledger.Hooks, tenant, time.Now().UTC()); err != nil {
		log.Fatalf("seed activity: %v", err)
	}

	fmt.Println("✓ Demo ledger ready")
}

func seedPeriods(ctx context.Context, svc *periods.Service, tenant int64, year int) error {
	for m := time.January; m <= time.December; m++ {
		start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		if _, err := svc.GetOpenPeriod(ctx, tenant, start); err == nil {
			continue
		} else if !errors.Is(err, shared.ErrPeriod) && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		_, err := svc.CreatePeriod(ctx, periods.CreateInput{
			TenantID:  tenant,
			Name:      start.Format("2006-01"),
			StartDate: start,
			EndDate:   start.AddDate(0, 1, -1),
		})
		// closed months overlap or follow the new range; leave them alone
		if err != nil && !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrPeriodSequence) {
			return err
		}
	}
	return nil
}

func seedActivity(ctx context.Context, hooks *integration.Hooks, tenant int64, now time.Time) error {
	day := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	meta := func(number string) integration.Meta {
		return integration.Meta{TenantID: tenant, Number: number, Date: day, Note: "demo"}
	}
	amount := decimal.RequireFromString

	steps := []func() error{
		func() error {
			_, err := hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("DEMO-001"), MemberID: 1, Kind: integration.SavingsPrincipal, Amount: amount("500000")})
			return err
		},
		func() error {
			_, err := hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("DEMO-002"), MemberID: 1, Kind: integration.SavingsMandatory, Amount: amount("100000")})
			return err
		},
		func() error {
			_, err := hooks.HandleSavingsDeposit(ctx, integration.SavingsEvent{Meta: meta("DEMO-003"), MemberID: 2, Kind: integration.SavingsVoluntary, Amount: amount("2500000")})
			return err
		},
		func() error {
			_, err := hooks.HandleLoanDisbursed(ctx, integration.LoanDisbursedEvent{Meta: meta("DEMO-L01"), MemberID: 2, Principal: amount("1200000")})
			return err
		},
		func() error {
			_, err := hooks.HandleLoanRepayment(ctx, integration.LoanRepaidEvent{Meta: meta("DEMO-L01"), MemberID: 2, Installment: 1, Principal: amount("100000"), Interest: amount("18000")})
			return err
		},
		func() error {
			_, err := hooks.HandleRetailSale(ctx, integration.RetailSaleEvent{Meta: meta("DEMO-R01"), Total: amount("75000"), Cost: amount("60000")})
			return err
		},
		func() error {
			_, err := hooks.HandlePPOB(ctx, integration.PPOBEvent{Meta: meta("DEMO-P01"), Product: "PLN-20K", Price: amount("22500"), Cost: amount("20000")})
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
