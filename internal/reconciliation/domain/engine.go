package reconciliation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	catalog "fuelsite-cloud/internal/catalog/domain"
	metering "fuelsite-cloud/internal/metering/domain"
)

// Anomaly kinds.
const (
	AnomalyNegativeDelta      = "negative_delta"
	AnomalySnapshotReadFailed = "snapshot_read_failed"
	AnomalyUnknownProduct     = "unknown_product"
)

// Row is the reconciliation of one nozzle. Nil numeric fields are blank:
// the value could not be computed and must not be read as zero.
type Row struct {
	NozzleID     string
	NozzleLabel  string
	PumpID       string
	ProductID    string
	ProductLabel string

	OpeningVolume   *float64
	ClosingVolume   *float64
	DispensedVolume *float64
	UnitPrice       *decimal.Decimal
	Revenue         *decimal.Decimal
}

// Totals sums dispensed volume and revenue.
type Totals struct {
	Volume  float64
	Revenue decimal.Decimal
}

func (t *Totals) add(row Row) {
	if row.DispensedVolume != nil {
		t.Volume += *row.DispensedVolume
	}
	if row.Revenue != nil {
		t.Revenue = t.Revenue.Add(*row.Revenue)
	}
}

// PumpGroup holds the rows of one pump and their subtotal.
type PumpGroup struct {
	PumpID string
	Label  string
	Rows   []Row
	Totals
}

// Anomaly flags a row whose values were left blank or partly blank.
type Anomaly struct {
	NozzleID string
	Kind     string
	Opening  *float64
	Closing  *float64
	Detail   string
}

// Report is the derived reconciliation of a window. It is never persisted.
type Report struct {
	Window     Window
	ByPump     map[string]PumpGroup
	GrandTotal Totals
	Anomalies  []Anomaly
}

// PumpLabels returns the ByPump keys in sorted order.
func (r Report) PumpLabels() []string {
	labels := make([]string, 0, len(r.ByPump))
	for label := range r.ByPump {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Reconcile computes per-nozzle volumes and revenue for window. snapshots is
// keyed by nozzle id; nozzles without an entry produce a blank row.
func Reconcile(window Window, cat catalog.Snapshot, snapshots map[string][]metering.Snapshot) Report {
	report := Report{
		Window: window,
		ByPump: make(map[string]PumpGroup),
	}

	for _, nozzle := range cat.Nozzles {
		row, anomalies := reconcileNozzle(window, nozzle, cat, snapshots[nozzle.ID])
		report.Anomalies = append(report.Anomalies, anomalies...)

		label := nozzle.PumpID
		if pump, ok := cat.Pumps[nozzle.PumpID]; ok && pump.Label != "" {
			label = pump.Label
		}
		group := report.ByPump[label]
		if group.PumpID == "" {
			group.PumpID = nozzle.PumpID
			group.Label = label
		}
		group.Rows = append(group.Rows, row)
		group.add(row)
		report.ByPump[label] = group
	}

	for label, group := range report.ByPump {
		rows := group.Rows
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].NozzleLabel != rows[j].NozzleLabel {
				return rows[i].NozzleLabel < rows[j].NozzleLabel
			}
			return rows[i].NozzleID < rows[j].NozzleID
		})
		report.ByPump[label] = group
	}
	for _, label := range report.PumpLabels() {
		group := report.ByPump[label]
		report.GrandTotal.Volume += group.Volume
		report.GrandTotal.Revenue = report.GrandTotal.Revenue.Add(group.Revenue)
	}
	return report
}

func reconcileNozzle(window Window, nozzle catalog.Nozzle, cat catalog.Snapshot, snapshots []metering.Snapshot) (Row, []Anomaly) {
	row := Row{
		NozzleID:    nozzle.ID,
		NozzleLabel: nozzle.Label,
		PumpID:      nozzle.PumpID,
		ProductID:   nozzle.ProductID,
	}
	product, knownProduct := cat.Products[nozzle.ProductID]
	if knownProduct {
		row.ProductLabel = product.Label
	}

	inRange := upTo(snapshots, window.Close)
	if len(inRange) == 0 {
		return row, nil
	}

	var anomalies []Anomaly
	if knownProduct {
		price := product.UnitPrice
		row.UnitPrice = &price
	} else {
		anomalies = append(anomalies, Anomaly{
			NozzleID: nozzle.ID,
			Kind:     AnomalyUnknownProduct,
			Detail:   "product " + nozzle.ProductID + " not in catalog",
		})
	}

	row.OpeningVolume = openingVolume(inRange, window.FrozenOpen())
	closing := inRange[len(inRange)-1].FinalReading
	row.ClosingVolume = &closing

	if row.OpeningVolume != nil {
		delta := closing - *row.OpeningVolume
		if delta >= 0 {
			row.DispensedVolume = &delta
		} else {
			anomalies = append(anomalies, Anomaly{
				NozzleID: nozzle.ID,
				Kind:     AnomalyNegativeDelta,
				Opening:  row.OpeningVolume,
				Closing:  row.ClosingVolume,
			})
		}
	}

	if row.UnitPrice != nil {
		revenue := decimal.Zero
		if row.DispensedVolume != nil {
			revenue = decimal.NewFromFloat(*row.DispensedVolume).Mul(*row.UnitPrice).Round(2)
		}
		row.Revenue = &revenue
	}
	return row, anomalies
}

// upTo returns the snapshots at or before limit, sorted by time.
func upTo(snapshots []metering.Snapshot, limit time.Time) []metering.Snapshot {
	out := make([]metering.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if !s.Timestamp.After(limit) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// openingVolume takes the final reading of the latest snapshot at or before
// frozen, else the initial reading of the earliest snapshot at or after it.
func openingVolume(sorted []metering.Snapshot, frozen time.Time) *float64 {
	for i := len(sorted) - 1; i >= 0; i-- {
		if !sorted[i].Timestamp.After(frozen) {
			v := sorted[i].FinalReading
			return &v
		}
	}
	for i := range sorted {
		if !sorted[i].Timestamp.Before(frozen) {
			v := sorted[i].InitialReading
			return &v
		}
	}
	return nil
}
