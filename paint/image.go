package paint

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// FromImage converts any image.Image into the RGBA8 ImageBuffer the
// palette consumes. When maxEdge is positive and the source exceeds it on
// either axis, the image is scaled down to fit with a bilinear filter so
// it can land in an atlas page; otherwise the pixels copy over untouched.
func FromImage(src image.Image, maxEdge int) *ImageBuffer {
	if src == nil {
		return nil
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	if maxEdge > 0 && (w > maxEdge || h > maxEdge) {
		scale := float64(maxEdge) / float64(w)
		if s := float64(maxEdge) / float64(h); s < scale {
			scale = s
		}
		nw, nh := int(float64(w)*scale), int(float64(h)*scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
		return &ImageBuffer{Width: nw, Height: nh, RGBA8: dst.Pix}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Copy(dst, image.Point{}, src, bounds, xdraw.Src, nil)
	return &ImageBuffer{Width: w, Height: h, RGBA8: dst.Pix}
}
