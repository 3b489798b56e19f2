package render

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
)

// Perspective is one entry of perspectives.json.
type Perspective struct {
	Filename string `json:"filename"`
	Pose
}

// WriteViews saves each view as <prefix><name>.png in dir and the poses,
// in view order, as perspectives.json. It returns the written paths.
func WriteViews(dir, prefix string, views []CameraView) ([]string, error) {
	var paths []string
	persp := make([]Perspective, 0, len(views))
	for _, v := range views {
		name := prefix + v.Name + ".png"
		path := filepath.Join(dir, name)
		if err := writePNG(path, v); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		persp = append(persp, Perspective{Filename: name, Pose: v.Pose})
	}

	data, err := json.MarshalIndent(persp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: encode perspectives: %w", err)
	}
	path := filepath.Join(dir, "perspectives.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return append(paths, path), nil
}

func writePNG(path string, v CameraView) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := png.Encode(f, v.Image); err != nil {
		f.Close()
		return fmt.Errorf("render: encode %s: %w", v.Name, err)
	}
	return f.Close()
}
