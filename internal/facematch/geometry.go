// Package facematch provides face matching utilities shared between the
// watcher loop, roster import, and web handlers.
package facematch

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	// Calculate union.
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// DedupBoxes drops boxes that overlap an earlier box above the IoU threshold.
// Boxes are expected in detection-score order, best first, so the strongest
// detection of a face survives. Returns indexes of kept boxes.
func DedupBoxes(boxes [][]float64, iouThreshold float64) []int {
	kept := make([]int, 0, len(boxes))
	for i, box := range boxes {
		dup := false
		for _, j := range kept {
			if ComputeIoU(box, boxes[j]) >= iouThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, i)
		}
	}
	return kept
}
