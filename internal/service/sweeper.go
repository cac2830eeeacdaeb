package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

// Sweeper periodically re-applies document cascades for settled orders. A
// crash between the ledger write and the document update leaves paid orders
// with pending documents; the sweep converges them.
type Sweeper struct {
	orders   OrderService
	interval time.Duration
}

func NewSweeper(orders OrderService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{orders: orders, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	repaired, err := s.orders.ReapplyDocumentCascades(ctx)
	entry := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"component": "reconcile_sweep",
		"repaired":  repaired,
	}
	if err != nil {
		entry["level"] = "error"
		entry["error"] = err.Error()
	} else {
		entry["level"] = "info"
	}
	if repaired == 0 && err == nil {
		return
	}
	if b, jsonErr := json.Marshal(entry); jsonErr == nil {
		log.SetFlags(0)
		log.SetOutput(os.Stdout)
		log.Println(string(b))
	}
}
