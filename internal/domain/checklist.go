package domain

// NormalizeExhibitor fills defaults and enforces the exhibitor invariant:
// quantities are never negative, and when the exhibitor does not apply both
// quantities are forced to zero. Idempotent.
func NormalizeExhibitor(ex Exhibitor) Exhibitor {
	if ex.NotApplicable {
		return Exhibitor{NotApplicable: true}
	}
	if ex.FlatQty < 0 {
		ex.FlatQty = 0
	}
	if ex.TableQty < 0 {
		ex.TableQty = 0
	}
	return ex
}

// ReconcileChecklist rebuilds a design checklist for a target design count.
// The result holds exactly indices 1..designs; entries that already existed
// keep their printed count and completed flag, new indices start at zero.
// Stale indices beyond the count are dropped. Idempotent for a fixed count.
func ReconcileChecklist(designs int, prev []DesignProgress) []DesignProgress {
	if designs < 0 {
		designs = 0
	}
	existing := make(map[int]DesignProgress, len(prev))
	for _, d := range prev {
		existing[d.Index] = d
	}
	out := make([]DesignProgress, 0, designs)
	for i := 1; i <= designs; i++ {
		if d, ok := existing[i]; ok {
			out = append(out, d)
		} else {
			out = append(out, DesignProgress{Index: i})
		}
	}
	return out
}

// ChecklistFor derives the checklist an order's products call for: sized to
// the keychain design count, empty when there is no keychain line.
func ChecklistFor(products []Product, prev []DesignProgress) []DesignProgress {
	keychain, ok := KeychainOf(products)
	if !ok {
		return []DesignProgress{}
	}
	return ReconcileChecklist(keychain.Designs, prev)
}
