package main

import (
	"context"
	"fmt"
	"os"

	"invoice-management/internal/adapters/cli"
	"invoice-management/internal/config"
	"invoice-management/internal/core"
	"invoice-management/internal/db"
	"invoice-management/internal/logger"
	"invoice-management/internal/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	methodRepo := postgres.NewPaymentMethodRepository(pool)

	calc := core.NewCalculationEngine()
	numbers := core.NewNumberEngine(invoiceRepo)
	statuses := core.NewStatusMachine()

	svc := cli.Services{
		Invoices: core.NewInvoiceService(invoiceRepo, numbers, calc, statuses),
		Payments: core.NewPaymentService(paymentRepo, invoiceRepo, methodRepo, statuses),
	}

	return cli.NewRootCmd(svc).ExecuteContext(ctx)
}
