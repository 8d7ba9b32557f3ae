package checker

import (
	"fmt"
	"io"
)

// ReportInconsistencies writes a human-readable summary of one check run.
func ReportInconsistencies(w io.Writer, result Result) {
	if len(result.Inconsistencies) == 0 {
		fmt.Fprintln(w, "No inconsistencies found. Offline and online stores are in sync.")
	} else {
		fmt.Fprintf(w, "Found %d inconsistencies:\n", len(result.Inconsistencies))
		for _, inc := range result.Inconsistencies {
			fmt.Fprintf(w, "  Feature View: %s\n", inc.FeatureView)
			fmt.Fprintf(w, "  Entity ID: %v\n", inc.EntityID)
			fmt.Fprintf(w, "  Feature: %s\n", inc.Feature)
			fmt.Fprintf(w, "  Offline Value: %v\n", inc.OfflineValue)
			fmt.Fprintf(w, "  Online Value: %v\n", inc.OnlineValue)
			fmt.Fprintln(w)
		}
	}

	if result.Drift != nil {
		fmt.Fprintf(w, "Numeric drift over %d comparisons: p50=%g p95=%g max=%g\n",
			result.Drift.Compared, result.Drift.P50, result.Drift.P95, result.Drift.Max)
	}
}
