package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/app"
	"github.com/tradedesk/tradedesk/internal/documents"
)

type material struct {
	code, name, unit string
	everyDays        int
	quantity         int64
	price            string
}

var materials = []material{
	{code: "SP-100", name: "Steel pipe 4in", unit: "m", everyDays: 30, quantity: 120, price: "7.50"},
	{code: "GV-040", name: "Gate valve 4in", unit: "pcs", everyDays: 45, quantity: 12, price: "85.00"},
	{code: "FL-200", name: "Flange DN100", unit: "pcs", everyDays: 21, quantity: 40, price: "30.00"},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	components, err := app.BuildComponents(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build components: %v", err)
	}
	defer components.Close()

	fmt.Println("→ Seeding purchase orders...")
	today := time.Now().UTC().Truncate(24 * time.Hour)
	created := 0
	for _, m := range materials {
		for i := 5; i >= 1; i-- {
			issued := today.AddDate(0, 0, -i*m.everyDays)
			po := documents.PurchaseOrder{
				Number:     fmt.Sprintf("PO-SEED-%s-%d", m.code, i),
				IssueDate:  issued,
				ExpiryDate: issued.AddDate(0, 0, 60),
				Customer:   documents.Party{Name: "Gulf Marine LLC", Email: "procurement@gulfmarine.example"},
				Items: []documents.LineItem{{
					Name:      m.name,
					Code:      m.code,
					Unit:      m.unit,
					Quantity:  decimal.NewFromInt(m.quantity),
					UnitPrice: decimal.RequireFromString(m.price),
				}},
			}
			if _, err := components.Workflow.Create(ctx, po); err != nil {
				log.Printf("skip %s: %v", po.Number, err)
				continue
			}
			created++
		}
	}

	fmt.Println("→ Seeding an open inquiry...")
	if _, err := components.Workflow.Create(ctx, documents.CustomerInquiry{
		Number:   "RFQ-SEED-1",
		Date:     today,
		Customer: documents.Party{Name: "Al Noor Contracting"},
		Items: []documents.LineItem{
			{Name: "Gate valve 4in", Code: "GV-040", Unit: "pcs", Quantity: decimal.NewFromInt(6)},
		},
	}); err != nil {
		log.Printf("skip inquiry: %v", err)
	}

	fmt.Printf("✓ Seed complete: %d purchase orders at %s\n", created, time.Now().Format(time.RFC3339))
}
