package models

// Box is a bounding box in pixel coordinates (x1, y1, x2, y2).
type Box [4]int

// Detection is one labelled object found in a frame.
type Detection struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// Width returns the box width.
func (b Box) Width() int {
	return b[2] - b[0]
}

// Height returns the box height.
func (b Box) Height() int {
	return b[3] - b[1]
}
