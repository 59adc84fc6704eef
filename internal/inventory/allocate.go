package inventory

// stockRow is one locked (warehouse, product) row during a reservation.
// Rows must already be ordered by warehouse id: the caller locks them in
// that order, and allocation draws from them in the same order.
type stockRow struct {
	WarehouseID string
	Available   int
}

type allocation struct {
	WarehouseID string
	Quantity    int
}

// allocate greedily takes from each warehouse in order until want is
// satisfied. Returns nil when the summed stock cannot cover the request:
// partial reservation is never allowed.
func allocate(rows []stockRow, want int) (allocs []allocation, total int) {
	for _, r := range rows {
		total += r.Available
	}
	if total < want || want <= 0 {
		return nil, total
	}
	remaining := want
	for _, r := range rows {
		if remaining == 0 {
			break
		}
		take := r.Available
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		allocs = append(allocs, allocation{WarehouseID: r.WarehouseID, Quantity: take})
		remaining -= take
	}
	return allocs, total
}
