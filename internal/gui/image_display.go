package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	ImageAreaWidth  = 800
	ImageAreaHeight = 600
)

// ImageDisplay shows the current preview above a one-line status.
type ImageDisplay struct {
	container    fyne.CanvasObject
	previewImage *canvas.Image
	statusLabel  *widget.Label
}

func NewImageDisplay() *ImageDisplay {
	display := &ImageDisplay{}
	display.createComponents()
	display.setupLayout()
	return display
}

func (id *ImageDisplay) createComponents() {
	id.previewImage = canvas.NewImageFromImage(nil)
	id.previewImage.FillMode = canvas.ImageFillContain
	id.previewImage.ScaleMode = canvas.ImageScaleSmooth
	id.previewImage.SetMinSize(fyne.NewSize(ImageAreaWidth, ImageAreaHeight))

	id.statusLabel = widget.NewLabel("c: show boundary   s: save   Esc: quit")
}

func (id *ImageDisplay) setupLayout() {
	id.container = container.NewBorder(nil, id.statusLabel, nil, nil, id.previewImage)
}

func (id *ImageDisplay) GetContainer() fyne.CanvasObject {
	return id.container
}

// SetPreviewImage must run on the fyne goroutine.
func (id *ImageDisplay) SetPreviewImage(img image.Image) {
	id.previewImage.Image = img
	id.previewImage.Refresh()
}

func (id *ImageDisplay) SetStatus(text string) {
	id.statusLabel.SetText(text)
}
