package allocation

import "github.com/medflow/stockledger/internal/inventory/domain"

// Take is the amount planned to be drawn from one batch.
type Take struct {
	BatchID  int64
	Quantity int
}

// Plan is the outcome of walking eligible batches for a requested quantity.
type Plan struct {
	Takes     []Take
	Requested int
	Allocated int
}

// Shortfall is the part of the request the walked batches could not cover.
func (p Plan) Shortfall() int {
	return p.Requested - p.Allocated
}

// PlanFIFO walks batches in the order given, which must be FIFO by
// expiration, taking from each until quantity is covered. Empty batches are
// skipped. When the plan falls short, Allocated is the whole eligible pool.
func PlanFIFO(batches []domain.StockBatch, quantity int) Plan {
	plan := Plan{Requested: quantity}
	remaining := quantity

	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := min(b.Quantity, remaining)
		if take <= 0 {
			continue
		}
		plan.Takes = append(plan.Takes, Take{BatchID: b.ID, Quantity: take})
		plan.Allocated += take
		remaining -= take
	}

	return plan
}
