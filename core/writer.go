package brc

import (
	"bytes"
	"fmt"
	"os"
)

// WriteCSV saves the final aggregates as StationName,Min,Max,Avg with
// one decimal per column. The stations slice is expected sorted, as
// Table.Stations returns it.
func WriteCSV(filename string, stations []Station) error {
	outFs, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o764)
	if err != nil {
		return err
	}
	defer outFs.Close()
	var buffer bytes.Buffer
	buffer.WriteString("StationName,Min,Max,Avg\n")
	for _, station := range stations {
		fmt.Fprintf(&buffer, "%s,%.1f,%.1f,%.1f\n",
			station.Name,
			float64(station.Min)/10.0,
			float64(station.Max)/10.0,
			station.Mean())
	}
	_, err = outFs.Write(buffer.Bytes())
	return err
}
