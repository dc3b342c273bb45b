// Command genmock writes deterministic synthetic fixtures: a training table
// shaped like the Australian daily weather observations, the coordinate
// table of its stations, and optionally the same rows as JSON observation
// messages for publishing to the service's source topic.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -train-out data/mock/train.csv \
//	  -coords-out data/mock/coordinates.csv \
//	  -json-out data/mock/observations.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/rain-features/internal/adapter/csvio"
	"github.com/couchcryptid/rain-features/internal/domain"
)

var startDate = time.Date(2017, time.June, 1, 0, 0, 0, 0, time.UTC)

type station struct {
	name     string
	lat, lon float64
	// climate baselines
	temp, rain, wind float64
}

var stations = []station{
	{name: "Albury", lat: -36.0737, lon: 146.9135, temp: 15, rain: 2.0, wind: 33},
	{name: "Wodonga", lat: -36.1218, lon: 146.8880, temp: 15, rain: 2.1, wind: 32},
	{name: "WaggaWagga", lat: -35.1082, lon: 147.3598, temp: 16, rain: 1.6, wind: 37},
	{name: "MountGambier", lat: -37.8284, lon: 140.7804, temp: 13, rain: 2.3, wind: 42},
	{name: "Adelaide", lat: -34.9285, lon: 138.6007, temp: 17, rain: 1.5, wind: 36},
	{name: "Darwin", lat: -12.4634, lon: 130.8456, temp: 28, rain: 5.1, wind: 40},
	{name: "Katherine", lat: -14.4650, lon: 132.2635, temp: 27, rain: 3.2, wind: 35},
	{name: "Cairns", lat: -16.9186, lon: 145.7781, temp: 25, rain: 5.7, wind: 38},
	{name: "Perth", lat: -31.9523, lon: 115.8613, temp: 19, rain: 1.9, wind: 35},
	{name: "Hobart", lat: -42.8821, lon: 147.3272, temp: 12, rain: 1.6, wind: 39},
	{name: "NorfolkIsland", lat: -29.0408, lon: 167.9547, temp: 19, rain: 3.1, wind: 42},
	{name: "Uluru", lat: -25.3444, lon: 131.0369, temp: 23, rain: 0.8, wind: 41},
}

var compass = []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	trainOut := flag.String("train-out", "", "output path for the training CSV")
	coordsOut := flag.String("coords-out", "", "output path for the coordinate CSV")
	jsonOut := flag.String("json-out", "", "optional output path for JSON observation messages")
	days := flag.Int("days", 120, "days of observations per station")
	missing := flag.Float64("missing", 0.08, "probability that a field is unrecorded")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *trainOut == "" || *coordsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -train-out, -coords-out")
	}

	frame, err := generate(*days, *missing, *seed)
	if err != nil {
		return err
	}
	log.Printf("generated %d observations for %d stations", frame.Len(), len(stations))

	if err := writeWith(*trainOut, func(f *os.File) error { return csvio.WriteFrame(f, frame) }); err != nil {
		return fmt.Errorf("writing training CSV: %w", err)
	}
	log.Printf("wrote training CSV: %s", *trainOut)

	coords := make([]domain.LocationCoordinate, len(stations))
	for i, s := range stations {
		coords[i] = domain.LocationCoordinate{Location: s.name, Latitude: s.lat, Longitude: s.lon}
	}
	if err := writeWith(*coordsOut, func(f *os.File) error { return csvio.WriteCoordinates(f, coords) }); err != nil {
		return fmt.Errorf("writing coordinate CSV: %w", err)
	}
	log.Printf("wrote coordinate CSV: %s", *coordsOut)

	if *jsonOut != "" {
		records := make([]map[string]any, frame.Len())
		for i := range records {
			records[i] = frame.Record(i)
		}
		if err := writeWith(*jsonOut, func(f *os.File) error {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}); err != nil {
			return fmt.Errorf("writing JSON observations: %w", err)
		}
		log.Printf("wrote JSON observations: %s", *jsonOut)
	}
	return nil
}

// generate builds days observations for every station. Values follow each
// station's baseline with seasonal drift, heavy-tailed rain and gusts, and
// a handful of sensor spikes so capping has something to do.
func generate(days int, missing float64, seed uint64) (*domain.Frame, error) {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	n := days * len(stations)

	cat := map[string][]string{}
	num := map[string][]float64{}
	catCols := []string{"Date", "Location", "WindGustDir", "WindDir9am", "WindDir3pm", "RainToday"}
	numCols := []string{
		"MinTemp", "MaxTemp", "Rainfall", "Evaporation", "Sunshine", "WindGustSpeed",
		"WindSpeed9am", "WindSpeed3pm", "Humidity9am", "Humidity3pm",
		"Pressure9am", "Pressure3pm", "Cloud9am", "Cloud3pm", "Temp9am", "Temp3pm",
	}

	maybe := func(v float64) float64 {
		if rng.Float64() < missing {
			return domain.Missing()
		}
		return math.Round(v*10) / 10
	}
	maybeStr := func(s string) string {
		if rng.Float64() < missing {
			return ""
		}
		return s
	}

	for d := range days {
		date := startDate.AddDate(0, 0, d)
		season := math.Cos(2 * math.Pi * float64(date.YearDay()) / 365.25)
		for _, s := range stations {
			temp := s.temp + 6*season + rng.NormFloat64()*2.5
			rain := 0.0
			if rng.Float64() < 0.3 {
				rain = rng.ExpFloat64() * s.rain * 3
			}
			gust := s.wind + rng.NormFloat64()*9
			if rng.Float64() < 0.01 {
				gust *= 3
			}
			humidity := clamp(60+rng.NormFloat64()*15+rain, 5, 100)
			pressure := 1017 + rng.NormFloat64()*6 - rain/4
			cloud := clamp(math.Round(4+rng.NormFloat64()*2.5+rain/5), 0, 8)
			dir := compass[rng.IntN(len(compass))]

			cat["Date"] = append(cat["Date"], date.Format(domain.DateKeyLayout))
			cat["Location"] = append(cat["Location"], s.name)
			cat["WindGustDir"] = append(cat["WindGustDir"], maybeStr(dir))
			cat["WindDir9am"] = append(cat["WindDir9am"], maybeStr(compass[rng.IntN(len(compass))]))
			cat["WindDir3pm"] = append(cat["WindDir3pm"], maybeStr(dir))
			cat["RainToday"] = append(cat["RainToday"], maybeStr(yesNo(rain > 1)))

			num["MinTemp"] = append(num["MinTemp"], maybe(temp-5))
			num["MaxTemp"] = append(num["MaxTemp"], maybe(temp+7))
			num["Rainfall"] = append(num["Rainfall"], maybe(rain))
			num["Evaporation"] = append(num["Evaporation"], maybe(clamp(5+3*season+rng.NormFloat64()*2, 0, 30)))
			num["Sunshine"] = append(num["Sunshine"], maybe(clamp(12-cloud+rng.NormFloat64(), 0, 14)))
			num["WindGustSpeed"] = append(num["WindGustSpeed"], maybe(math.Max(gust, 6)))
			num["WindSpeed9am"] = append(num["WindSpeed9am"], maybe(math.Max(gust/3+rng.NormFloat64()*4, 0)))
			num["WindSpeed3pm"] = append(num["WindSpeed3pm"], maybe(math.Max(gust/2.5+rng.NormFloat64()*4, 0)))
			num["Humidity9am"] = append(num["Humidity9am"], maybe(humidity))
			num["Humidity3pm"] = append(num["Humidity3pm"], maybe(clamp(humidity-15+rng.NormFloat64()*8, 1, 100)))
			num["Pressure9am"] = append(num["Pressure9am"], maybe(pressure))
			num["Pressure3pm"] = append(num["Pressure3pm"], maybe(pressure-2.5))
			num["Cloud9am"] = append(num["Cloud9am"], maybe(cloud))
			num["Cloud3pm"] = append(num["Cloud3pm"], maybe(clamp(cloud+rng.NormFloat64(), 0, 8)))
			num["Temp9am"] = append(num["Temp9am"], maybe(temp))
			num["Temp3pm"] = append(num["Temp3pm"], maybe(temp+5))
		}
	}

	f := domain.NewFrame(n)
	for _, name := range catCols {
		if err := f.SetCategorical(name, cat[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range numCols {
		if err := f.SetNumeric(name, num[name]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func writeWith(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
