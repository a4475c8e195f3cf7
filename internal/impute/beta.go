package impute

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/eutectik/lodimpute/internal/coda"
	"github.com/eutectik/lodimpute/internal/monitoring"
	"github.com/eutectik/lodimpute/internal/table"
)

// betaEngine implements β-substitution after Ganser & Hewett (2010,
// J. Occup. Environ. Hyg. 7:4, 233-244): a per-column factor β is derived
// from the observed values' log statistics and every censored cell is
// replaced by β × its own detection limit. Fully deterministic.
type betaEngine struct {
	params BetaParams
}

func (e *betaEngine) impute(t *table.Table, reg *table.Registry, _ *table.Coordinates) (*table.Table, *Diagnostics, error) {
	out := t.Clone()
	diag := newDiagnostics(MethodBeta)

	for c := 0; c < t.NumCols(); c++ {
		name := t.ColumnName(c)
		censRows := reg.CensoredRows(c)
		observed := observedColumn(t, reg, c)
		cd := diag.column(name, len(observed)+len(censRows), len(censRows), reg.Limits(name))
		if len(censRows) == 0 {
			continue
		}
		if len(observed) < 2 {
			cd.Skipped = true
			cd.SkipReason = "insufficient-data"
			monitoring.Warnf("beta: column %s: %v observed values: %v", name, len(observed), ErrInsufficientData)
			continue
		}

		// Mixed detection limits in one column are reduced to a single
		// representative LOD for the factor computation: the geometric
		// mean of the censored cells' thresholds. Imputation itself stays
		// per-cell.
		limits := make([]float64, len(censRows))
		for i, r := range censRows {
			limits[i] = reg.CellLimit(r, c)
		}
		colLOD, err := coda.GeometricMean(limits)
		if err != nil {
			return nil, nil, fmt.Errorf("beta: column %s limits: %w", name, err)
		}

		betaGM, betaMean, err := ganserHewettFactors(observed, len(censRows), colLOD)
		var imputed []float64
		if err != nil {
			// Degenerate factor: substitute LOD/√2 per cell and flag
			// the column.
			monitoring.Warnf("beta: column %s: %v; substituting LOD/sqrt2", name, err)
			cd.Fallbacks = len(censRows)
			cd.AddStat("fallback_sqrt2", 1)
			imputed = make([]float64, len(censRows))
			for i, r := range censRows {
				imputed[i] = reg.CellLimit(r, c) / math.Sqrt2
				out.Set(r, c, imputed[i])
			}
			imputedSummary(cd, imputed)
			continue
		}

		cd.AddStat("beta_gm", betaGM)
		cd.AddStat("beta_mean", betaMean)
		imputed = make([]float64, len(censRows))
		for i, r := range censRows {
			imputed[i] = betaMean * reg.CellLimit(r, c)
			out.Set(r, c, imputed[i])
		}
		betaEstimates(cd, observed, censRows, colLOD, betaGM, betaMean)
		imputedSummary(cd, imputed)
	}
	return out, diag, nil
}

// ganserHewettFactors computes the β_GM and β_MEAN substitution factors for
// a column with nObs observed values above a representative detection limit
// and k censored values below it. An error marks a degenerate column whose
// factors are unusable; callers fall back to LOD/√2.
func ganserHewettFactors(observed []float64, k int, colLOD float64) (betaGM, betaMean float64, err error) {
	if len(observed) < 2 {
		return 0, 0, fmt.Errorf("%d observed values: %w", len(observed), ErrInsufficientData)
	}
	logSum := 0.0
	for _, v := range observed {
		if v <= 0 {
			return 0, 0, fmt.Errorf("observed value %v: %w", v, ErrDomain)
		}
		logSum += math.Log(v)
	}
	yBar := logSum / float64(len(observed))

	n := float64(len(observed) + k)
	kf := float64(k)
	norm := distuv.UnitNormal

	z := norm.Quantile(kf / n)
	fZ := norm.Prob(z) / norm.Survival(z)
	sY := (yBar - math.Log(colLOD)) / (fZ - z)
	if sY <= 0 || math.IsNaN(sY) || math.IsInf(sY, 0) {
		return 0, 0, fmt.Errorf("non-positive log-scale estimate %v", sY)
	}

	fSYZ := norm.Survival(z-sY/n) / norm.Survival(z)

	betaMean = (n / kf) * norm.CDF(z-sY) * math.Exp(-sY*z+sY*sY/2)
	betaGM = math.Exp(-(n-kf)*n/kf*math.Log(fSYZ) - sY*z - (n-kf)/(2*kf*n)*sY*sY)

	if !(betaMean > 0 && betaMean < 1) || math.IsNaN(betaMean) {
		return 0, 0, fmt.Errorf("beta_MEAN %v outside (0,1)", betaMean)
	}
	if !(betaGM > 0 && betaGM < 1) || math.IsNaN(betaGM) {
		return 0, 0, fmt.Errorf("beta_GM %v outside (0,1)", betaGM)
	}
	return betaGM, betaMean, nil
}

// betaEstimates records the reconstructed geometric mean, arithmetic mean
// and geometric standard deviation of the column after substitution.
func betaEstimates(cd *ColumnDiagnostics, observed []float64, censRows []int, colLOD, betaGM, betaMean float64) {
	k := len(censRows)
	n := len(observed) + k

	gmValues := make([]float64, 0, n)
	meanValues := make([]float64, 0, n)
	gmValues = append(gmValues, observed...)
	meanValues = append(meanValues, observed...)
	for i := 0; i < k; i++ {
		gmValues = append(gmValues, betaGM*colLOD)
		meanValues = append(meanValues, betaMean*colLOD)
	}

	gmEst, err := coda.GeometricMean(gmValues)
	if err != nil {
		return
	}
	meanEst := 0.0
	for _, v := range meanValues {
		meanEst += v
	}
	meanEst /= float64(n)

	gsd := 1.0
	if meanEst/gmEst > 1 {
		sY := math.Sqrt(2*float64(n)/float64(n-1)) * math.Log(meanEst/gmEst)
		gsd = math.Exp(sY)
	}
	cd.AddStat("gm_estimate", gmEst)
	cd.AddStat("mean_estimate", meanEst)
	cd.AddStat("gsd_estimate", gsd)
}
