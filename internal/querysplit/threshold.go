// Package querysplit splits one QuerySpec into a high/low-resolution
// tier pair and chunks a tier's range into bounded-size sub-requests,
// including adaptive halving when a chunk exceeds the backend's point
// cap.
package querysplit

import (
	"strconv"
	"time"

	"github.com/sapcc/alertmagnet/internal/queryapi"
)

const (
	tier1Step                = "3600"
	tier1MaxSourceResolution = "1h"
	tier0MaxSourceResolution = "0s"
)

// SplitByThreshold splits spec into a tier-0 (high-resolution, recent)
// and tier-1 (low-resolution, older) spec at now-minus-thresholdDays.
// A nil thresholdDays returns (spec, nil): the whole range stays at
// high resolution. When the split point does not lie strictly inside
// the spec's own (GlobalStart, GlobalEnd) window, one of the two tiers is empty
// (nil). Comparisons are always numeric UNIX-timestamp comparisons,
// never lexical.
func SplitByThreshold(spec queryapi.QuerySpec, thresholdDays *int, now time.Time) (tier0, tier1 *queryapi.QuerySpec) {
	if thresholdDays == nil {
		s := spec
		return &s, nil
	}

	startF, err := strconv.ParseFloat(spec.GlobalStart, 64)
	if err != nil {
		s := spec
		return &s, nil
	}
	endF, err := strconv.ParseFloat(spec.GlobalEnd, 64)
	if err != nil {
		s := spec
		return &s, nil
	}

	splitF := float64(now.Add(-time.Duration(*thresholdDays) * 24 * time.Hour).Unix())

	switch {
	case endF > splitF && splitF > startF:
		hi := spec
		hi.GlobalStart = queryapi.FormatTimestamp(splitF)
		hi.MaxSourceResolution = tier0MaxSourceResolution

		lo := spec
		lo.GlobalEnd = queryapi.FormatTimestamp(splitF)
		lo.Step = tier1Step
		lo.MaxSourceResolution = tier1MaxSourceResolution

		return &hi, &lo

	case splitF >= endF:
		// The whole window is older than the split point. Boundary
		// equality degenerates the same way: tier 0 would be empty.
		s := spec
		return nil, &s

	default: // splitF <= startF: the whole window is newer.
		s := spec
		return &s, nil
	}
}
