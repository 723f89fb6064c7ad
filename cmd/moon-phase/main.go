// Command moon-phase prints the moon phase at noon UTC for a run of days,
// marking spring tides.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/lunar"
)

func main() {
	startStr := flag.String("start", "", "First date (YYYY-MM-DD); defaults to today")
	days := flag.Int("days", 1, "Number of days to print")
	flag.Parse()

	start := tide.DateOf(time.Now().UTC())
	if *startStr != "" {
		var err error
		start, err = tide.ParseDate(*startStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			os.Exit(1)
		}
	}
	if *days < 1 {
		fmt.Fprintln(os.Stderr, "-days must be at least 1")
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPHASE\tILLUMINATION\tAGE\tSPRING TIDE")
	noon := start.Midday()
	for i := 0; i < *days; i++ {
		t := noon.AddDate(0, 0, i)
		p := lunar.Calculate(t)
		spring := ""
		if p.SpringTide {
			spring = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%.1f d\t%s\n",
			tide.DateOf(t), p.PhaseName, p.Illumination*100, p.AgeDays, spring)
	}
	w.Flush()
}
