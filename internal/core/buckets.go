package core

import (
	"context"
	"fmt"
	"time"

	"logvault/internal/domain"
)

// RangeCounter counts records with a timestamp inside [start, end], both ends
// inclusive.
type RangeCounter interface {
	CountRange(ctx context.Context, start, end time.Time) (int64, error)
}

// AggregateBuckets walks the resolved interval in Width-sized steps and
// counts records per slice. Every slice from Start through the final partial
// one at End is reported, zero counts included, so the histogram is gap-free.
// Each bucket is labelled with its end instant.
//
// The per-bucket range count is the source of truth: a grouped/truncated
// aggregate from the store would omit empty buckets, so it is never used
// here.
func AggregateBuckets(ctx context.Context, iv domain.TimeInterval, src RangeCounter) ([]domain.Bucket, error) {
	if iv.Width <= 0 {
		return nil, fmt.Errorf("bucket width must be positive, got %s", iv.Width)
	}
	var out []domain.Bucket
	for cursor := iv.Start; !cursor.After(iv.End); cursor = cursor.Add(iv.Width) {
		bucketEnd := cursor.Add(iv.Width)
		n, err := src.CountRange(ctx, cursor, bucketEnd)
		if err != nil {
			return nil, fmt.Errorf("count bucket ending %s: %w", bucketEnd, err)
		}
		out = append(out, domain.Bucket{Boundary: bucketEnd, Count: n})
	}
	return out, nil
}
