package domain

// Product is a catalog record as the terminal last saw it. Stock is a
// snapshot; the backend is authoritative at commit time. Money is in minor
// units.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	CostPrice int64  `json:"cost_price"`
	SellPrice int64  `json:"sell_price"`
	Stock     int    `json:"stock"`
	Barcode   string `json:"barcode,omitempty"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}
