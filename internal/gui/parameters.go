package gui

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"meltpool/internal/models"
)

// ParameterPanel holds one integer slider per tunable parameter.
type ParameterPanel struct {
	container              *fyne.Container
	sliders                map[string]*widget.Slider
	parameterChangeHandler func(string, int)
}

func NewParameterPanel(ranges []models.ParameterRange, cfg models.ParameterConfig) *ParameterPanel {
	panel := &ParameterPanel{
		sliders: make(map[string]*widget.Slider),
	}
	panel.setupPanel(ranges, cfg)
	return panel
}

func (pp *ParameterPanel) setupPanel(ranges []models.ParameterRange, cfg models.ParameterConfig) {
	pp.container = container.NewVBox(widget.NewLabel("Parameters:"))

	for _, r := range ranges {
		value, _ := cfg.Value(r.Name)
		pp.addSlider(r, value)
	}
}

func (pp *ParameterPanel) addSlider(r models.ParameterRange, value int) {
	name, label := r.Name, r.Label

	slider := widget.NewSlider(float64(r.Min), float64(r.Max))
	slider.Step = 1
	slider.SetValue(float64(value))

	valueLabel := widget.NewLabel(label + ": " + strconv.Itoa(value))
	last := value

	slider.OnChanged = func(v float64) {
		intValue := int(v)
		if intValue == last {
			return
		}
		last = intValue
		valueLabel.SetText(label + ": " + strconv.Itoa(intValue))

		if pp.parameterChangeHandler != nil {
			pp.parameterChangeHandler(name, intValue)
		}
	}

	pp.container.Add(container.NewVBox(valueLabel, slider))
	pp.sliders[name] = slider
}

func (pp *ParameterPanel) GetContainer() *fyne.Container {
	return pp.container
}

func (pp *ParameterPanel) SetParameterChangeHandler(handler func(string, int)) {
	pp.parameterChangeHandler = handler
}
