// Package datasettest generates small deterministic counter and weather
// tables for tests of the merge, pipeline and driver packages.
package datasettest

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/bikecount/dataset"
)

// WeatherColumns are the numeric auxiliary columns Synthetic produces. They
// cover the default numeric feature set except latitude and longitude.
var WeatherColumns = []string{
	"tend", "cod_tend", "dd", "ff", "t", "u", "vv", "ww", "w1", "n",
	"nbas", "tend24", "etat_sol", "ht_neige", "rr1", "rr3", "rr6",
	"rr12", "rr24",
}

// Start is the first observation timestamp.
var Start = time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

type counter struct {
	name, site string
	lat, lon   float64
	effect     float64
}

var counters = []counter{
	{name: "28 boulevard Diderot E-O", site: "28 boulevard Diderot", lat: 48.846, lon: 2.375, effect: 0.0},
	{name: "Totem 73 boulevard de Sébastopol S-N", site: "Totem 73 boulevard de Sébastopol", lat: 48.864, lon: 2.350, effect: 1.5},
	{name: "Quai d'Orsay E-O", site: "Quai d'Orsay", lat: 48.863, lon: 2.311, effect: 0.7},
}

// Synthetic returns hours hourly observations per counter (in time-major
// order) and a 3-hourly auxiliary table starting 3 hours before Start.
//
// The target is a smooth function of temperature, hour of day and counter
// plus small noise, so any reasonable regressor fits it well.
func Synthetic(hours int, seed uint64) ([]dataset.Observation, *dataset.AuxiliaryTable) {
	rng := rand.New(rand.NewPCG(seed, seed))

	auxRows := hours/3 + 2
	dates := make([]time.Time, auxRows)
	cols := make([][]float64, len(WeatherColumns))
	for j := range cols {
		cols[j] = make([]float64, auxRows)
	}
	temp := make([]float64, auxRows)
	for i := range dates {
		dates[i] = Start.Add(time.Duration(3*i-3) * time.Hour)
		h := float64(dates[i].Hour())
		temp[i] = 288 + 6*math.Sin(2*math.Pi*(h-9)/24) + rng.NormFloat64()
		for j, name := range WeatherColumns {
			if name == "t" {
				cols[j][i] = temp[i]
				continue
			}
			cols[j][i] = float64(j) + rng.Float64()
		}
	}
	aux := dataset.NewAuxiliaryTable(dates)
	for j, name := range WeatherColumns {
		if err := aux.AddNumeric(name, cols[j]); err != nil {
			panic(err)
		}
	}

	obs := make([]dataset.Observation, 0, hours*len(counters))
	for h := 0; h < hours; h++ {
		ts := Start.Add(time.Duration(h) * time.Hour)
		t := temp[h/3+1]
		for k, c := range counters {
			y := 2 + 0.1*(t-288) + c.effect +
				math.Cos(2*math.Pi*float64(ts.Hour()-17)/24) +
				0.05*rng.NormFloat64()
			obs = append(obs, dataset.Observation{
				Date:                    ts,
				CounterID:               c.site + "-" + string(rune('A'+k)),
				CounterName:             c.name,
				SiteID:                  c.site,
				SiteName:                c.site,
				CounterInstallationDate: time.Date(2013, 1, 18, 0, 0, 0, 0, time.UTC),
				CounterTechnicalID:      "Y2H" + string(rune('0'+k)),
				Coordinates:             "48.8,2.3",
				Latitude:                c.lat,
				Longitude:               c.lon,
				LogBikeCount:            y,
				HasTarget:               true,
			})
		}
	}
	return obs, aux
}

// Merged runs Synthetic through a Merger with default options.
func Merged(hours int, seed uint64) (*dataset.MergedTable, error) {
	obs, aux := Synthetic(hours, seed)
	return dataset.NewMerger(dataset.DefaultMergeOptions()).Merge(obs, aux)
}

// WithoutTargets returns a copy of obs with the targets cleared.
func WithoutTargets(obs []dataset.Observation) []dataset.Observation {
	out := append([]dataset.Observation(nil), obs...)
	for i := range out {
		out[i].LogBikeCount = 0
		out[i].HasTarget = false
	}
	return out
}
