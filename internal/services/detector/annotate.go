package detector

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"spillwatch-worker/internal/models"
)

var (
	boxColor     = color.RGBA{R: 255, G: 80, B: 0, A: 255}
	labelColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBgColor = color.RGBA{R: 0, G: 0, B: 0, A: 200}
)

// drawDetections burns bounding boxes and confidence labels into the frame.
func drawDetections(mat *gocv.Mat, detections []models.Detection) {
	for _, det := range detections {
		x1, y1 := int(det.BBox[0]), int(det.BBox[1])
		x2, y2 := int(det.BBox[2]), int(det.BBox[3])

		gocv.Rectangle(mat, image.Rect(x1, y1, x2, y2), boxColor, 2)

		label := fmt.Sprintf("%s %.2f", det.ClassName, det.Confidence)
		textSize := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.6, 2)

		textY := y1 - 8
		if textY < textSize.Y {
			textY = y1 + textSize.Y + 8
		}

		bgRect := image.Rect(x1, textY-textSize.Y-4, x1+textSize.X+8, textY+4)
		gocv.Rectangle(mat, bgRect, labelBgColor, -1)
		gocv.PutText(mat, label, image.Pt(x1+4, textY), gocv.FontHersheySimplex, 0.6, labelColor, 2)
	}
}
