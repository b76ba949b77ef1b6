package detector

import "image"

// polygonArea returns the signed shoelace area of a closed contour.
func polygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += float64(pts[i].X)*float64(pts[j].Y) - float64(pts[j].X)*float64(pts[i].Y)
	}
	return sum / 2
}

// contourCentroid returns the area centroid of a contour. For degenerate
// contours (collinear points, tiny blobs) it falls back to the vertex mean.
// The second return is false only for an empty contour.
func contourCentroid(pts []image.Point) (image.Point, bool) {
	if len(pts) == 0 {
		return image.Point{}, false
	}

	area := polygonArea(pts)
	if area != 0 {
		var cx, cy float64
		for i := range pts {
			j := (i + 1) % len(pts)
			cross := float64(pts[i].X)*float64(pts[j].Y) - float64(pts[j].X)*float64(pts[i].Y)
			cx += (float64(pts[i].X) + float64(pts[j].X)) * cross
			cy += (float64(pts[i].Y) + float64(pts[j].Y)) * cross
		}
		return image.Pt(int(cx/(6*area)), int(cy/(6*area))), true
	}

	var sx, sy int
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	return image.Pt(sx/len(pts), sy/len(pts)), true
}
