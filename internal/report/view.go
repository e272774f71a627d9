package report

import "expensebot/internal/core"

type (
	WeekPoint struct {
		WeekStart string  `json:"week_start"`
		Amount    float64 `json:"amount"`
	}

	VendorPoint struct {
		Vendor string  `json:"vendor"`
		Amount float64 `json:"amount"`
	}

	WeeklyView struct {
		Weekly []WeekPoint `json:"weekly"`
	}

	VendorsView struct {
		Vendors []VendorPoint `json:"vendors"`
	}

	// View is the serializable form of a Report. Weekly and Vendors are
	// null when there is nothing to plot.
	View struct {
		Period  string       `json:"period"`
		Text    string       `json:"text"`
		Weekly  *WeeklyView  `json:"weekly"`
		Vendors *VendorsView `json:"vendors"`
	}
)

func (r Report) View() View {
	v := View{
		Period: core.PeriodLabel(r.Year, r.Month),
		Text:   r.Text,
	}
	if len(r.Weekly) > 0 {
		w := &WeeklyView{Weekly: make([]WeekPoint, 0, len(r.Weekly))}
		for _, p := range r.Weekly {
			w.Weekly = append(w.Weekly, WeekPoint{WeekStart: p.WeekStart.String(), Amount: core.Round2(p.Amount)})
		}
		v.Weekly = w
	}
	if len(r.Vendors) > 0 {
		vv := &VendorsView{Vendors: make([]VendorPoint, 0, len(r.Vendors))}
		for _, p := range r.Vendors {
			vv.Vendors = append(vv.Vendors, VendorPoint{Vendor: p.Vendor, Amount: core.Round2(p.Amount)})
		}
		v.Vendors = vv
	}
	return v
}
