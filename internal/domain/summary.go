package domain

// DaySummary aggregates the sales of one calendar day. Revenue and profit
// count completed sales only.
type DaySummary struct {
	Date          string                  `json:"date"`
	SaleCount     int                     `json:"sale_count"`
	RefundedCount int                     `json:"refunded_count"`
	Revenue       int64                   `json:"revenue"`
	Profit        int64                   `json:"profit"`
	ItemsSold     int                     `json:"items_sold"`
	ByPayment     map[PaymentMethod]int64 `json:"by_payment"`
}

// Summarize folds sales into a DaySummary for day. The caller decides which
// sales belong to the day.
func Summarize(day string, sales []Sale) DaySummary {
	sum := DaySummary{
		Date:      day,
		ByPayment: make(map[PaymentMethod]int64, len(PaymentMethods())),
	}
	for _, m := range PaymentMethods() {
		sum.ByPayment[m] = 0
	}

	for _, s := range sales {
		if !s.IsCompleted() {
			if s.Status == SaleStatusRefunded {
				sum.RefundedCount++
			}
			continue
		}
		sum.SaleCount++
		sum.Revenue += s.TotalAmount
		sum.Profit += s.TotalProfit
		sum.ByPayment[s.PaymentMethod] += s.TotalAmount
		for _, it := range s.Items {
			sum.ItemsSold += it.Quantity
		}
	}
	return sum
}
