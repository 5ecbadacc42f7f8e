package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/pkordes/grumeter/internal/domain"
)

// render writes res to w in the requested format.
func render(w io.Writer, format string, res domain.CalculationResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(domain.CSVHeader); err != nil {
			return err
		}
		if err := cw.Write(res.CSVRecord()); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	default:
		return writeText(w, res)
	}
}

func writeText(w io.Writer, res domain.CalculationResult) error {
	shares := res.Shares()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "source\tkg CO2e\tshare\t\n")
	fmt.Fprintf(tw, "transportation\t%.2f\t%.1f%%\t\n", res.Result.Transportation, shares.Transportation)
	fmt.Fprintf(tw, "accommodation\t%.2f\t%.1f%%\t\n", res.Result.Accommodation, shares.Accommodation)
	fmt.Fprintf(tw, "course\t%.2f\t%.1f%%\t\n", res.Result.Course, shares.Course)
	fmt.Fprintf(tw, "total\t%.2f\t\t\n", res.TotalCarbonEmission)
	if err := tw.Flush(); err != nil {
		return err
	}

	highest := res.Result.Highest()
	fmt.Fprintf(w, "\nparticipants: %d\n", res.ParticipantCount)
	fmt.Fprintf(w, "level: %s\n", res.Level())
	fmt.Fprintf(w, "largest source: %s\n", highest)
	for _, tip := range highest.Tips() {
		fmt.Fprintf(w, "  - %s\n", tip)
	}
	return nil
}

// renderCourses writes a course listing to w in the requested format.
func renderCourses(w io.Writer, format string, courses []domain.CourseSummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(courses)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "title", "area", "sigungu", "distance_km", "carbon_emission", "like_count", "is_liked"})
		for _, c := range courses {
			_ = cw.Write([]string{
				strconv.Itoa(c.ID),
				c.Title,
				c.AreaName,
				c.SigunguName,
				strconv.FormatFloat(c.DistanceKm, 'f', 1, 64),
				strconv.FormatFloat(c.TotalCarbonEmission, 'f', 2, 64),
				strconv.Itoa(c.LikeCount),
				strconv.FormatBool(c.IsLiked),
			})
		}
		cw.Flush()
		return cw.Error()
	}

	if len(courses) == 0 {
		_, err := fmt.Fprintln(w, "no courses found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTITLE\tAREA\tKM\tKG CO2E\tLIKES\n")
	for _, c := range courses {
		likes := strconv.Itoa(c.LikeCount)
		if c.IsLiked {
			likes += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s %s\t%.1f\t%.2f\t%s\n",
			c.ID, c.Title, c.AreaName, c.SigunguName, c.DistanceKm, c.TotalCarbonEmission, likes)
	}
	return tw.Flush()
}
