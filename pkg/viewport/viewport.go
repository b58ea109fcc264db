package viewport

import (
	"fmt"

	"github.com/sre-norns/wyrd/pkg/manifest"
)

var (
	ErrInvalidViewport = fmt.Errorf("invalid viewport")
	ErrUnknownViewport = fmt.Errorf("unknown viewport")
)

// Viewport is a simulated browser window a page is rendered into
type Viewport struct {
	// Label used in the output file name
	Name string `json:"name" yaml:"name"`

	Width  int64 `json:"width" yaml:"width"`
	Height int64 `json:"height" yaml:"height"`

	// Emulate touch input, the page is still rendered as a desktop browser window
	Touch bool `json:"touch,omitempty" yaml:"touch,omitempty"`
}

// The set of viewports every capture run goes through, in capture order.
var defaultViewports = [...]Viewport{
	{Name: "ultrawide", Width: 3440, Height: 1440},
	{Name: "desktop", Width: 1920, Height: 1080},
	{Name: "mobile", Width: 390, Height: 844, Touch: true},
}

// Defaults returns a copy of the fixed viewport set
func Defaults() []Viewport {
	result := make([]Viewport, len(defaultViewports))
	copy(result, defaultViewports[:])

	return result
}

// Find a viewport of the fixed set by its name
func Find(name string) (Viewport, error) {
	for _, v := range defaultViewports {
		if v.Name == name {
			return v, nil
		}
	}

	return Viewport{}, fmt.Errorf("%w: %q", ErrUnknownViewport, name)
}

// Filename is the name of the screenshot file produced for the viewport
func (v Viewport) Filename() string {
	return fmt.Sprintf("screenshot_%s.png", v.Name)
}

func (v Viewport) String() string {
	return fmt.Sprintf("%s(%dx%d)", v.Name, v.Width, v.Height)
}

func (v Viewport) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidViewport)
	}

	// Names are used in file names
	if errs := manifest.ValidateSubdomainName(v.Name); errs != nil {
		return fmt.Errorf("%w: name %q: %v", ErrInvalidViewport, v.Name, errs)
	}

	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: %q has non-positive dimensions %dx%d", ErrInvalidViewport, v.Name, v.Width, v.Height)
	}

	return nil
}
