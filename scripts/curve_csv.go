package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/kelvinlab/vaporcurve/internal/vapor"
)

func WriteCurveCSV(compound string, dataPath, filename string, minTorr, maxTorr float64, samples int) error {
	catalog := vapor.NewCatalog(vapor.CSVSource{Path: dataPath})
	if err := catalog.Load(); err != nil {
		return fmt.Errorf("failed to load catalog: %v", err)
	}
	rec, err := catalog.Lookup(compound)
	if err != nil {
		return fmt.Errorf("failed to find compound: %v", err)
	}

	curve, err := vapor.GenerateCurve(rec, minTorr, maxTorr, samples)
	if err != nil {
		return fmt.Errorf("failed to generate curve: %v", err)
	}

	// Create CSV file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write CSV header
	if err := writer.Write([]string{"Pressure (torr)", "Boiling Point (C)"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, pt := range curve {
		if err := writer.Write([]string{
			fmt.Sprintf("%.4f", pt.Pressure),
			fmt.Sprintf("%.4f", pt.Temperature),
		}); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}
	}

	return nil
}

func main() {
	compound := "Water"
	minTorr, maxTorr := 1.0, 760.0
	samples := 1000

	args := os.Args[1:]
	if len(args) == 2 {
		fmt.Fprintln(os.Stderr, "usage: curve_csv [compound [min_torr max_torr [samples]]]")
		os.Exit(2)
	}
	if len(args) > 0 {
		compound = args[0]
	}
	if len(args) >= 3 {
		var err error
		if minTorr, err = strconv.ParseFloat(args[1], 64); err != nil {
			fmt.Fprintf(os.Stderr, "bad min pressure %q: %v\n", args[1], err)
			os.Exit(2)
		}
		if maxTorr, err = strconv.ParseFloat(args[2], 64); err != nil {
			fmt.Fprintf(os.Stderr, "bad max pressure %q: %v\n", args[2], err)
			os.Exit(2)
		}
	}
	if len(args) >= 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad sample count %q: %v\n", args[3], err)
			os.Exit(2)
		}
		samples = n
	}

	if err := WriteCurveCSV(compound, "chem_list.csv", "vaporcurve.csv", minTorr, maxTorr, samples); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
