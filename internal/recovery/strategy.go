package recovery

import "image"

// Strategy names a sub-region of the source image to scan.
type Strategy struct {
	Name   string
	Region func(bounds image.Rectangle) image.Rectangle
}

// Strategy names, in scan order.
const (
	StrategyFull        = "full"
	StrategyBottomRight = "bottom-right"
	StrategyBottomLeft  = "bottom-left"
	StrategyCenter      = "center-80"
)

// DefaultStrategies is the fixed priority list. Invoice codes sit in the footer at
// bottom-right; receipt and payslip codes are left-aligned.
var DefaultStrategies = []Strategy{
	{Name: StrategyFull, Region: func(b image.Rectangle) image.Rectangle { return b }},
	{Name: StrategyBottomRight, Region: bottomRight},
	{Name: StrategyBottomLeft, Region: bottomLeft},
	{Name: StrategyCenter, Region: center80},
}

func bottomRight(b image.Rectangle) image.Rectangle {
	mid := midpoint(b)
	return image.Rect(mid.X, mid.Y, b.Max.X, b.Max.Y)
}

func bottomLeft(b image.Rectangle) image.Rectangle {
	mid := midpoint(b)
	return image.Rect(b.Min.X, mid.Y, mid.X, b.Max.Y)
}

func center80(b image.Rectangle) image.Rectangle {
	dx := b.Dx() / 10
	dy := b.Dy() / 10
	return image.Rect(b.Min.X+dx, b.Min.Y+dy, b.Max.X-dx, b.Max.Y-dy)
}

func midpoint(b image.Rectangle) image.Point {
	return image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
}
