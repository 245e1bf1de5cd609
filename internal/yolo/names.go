package yolo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoClassNames is returned when a names document contains no usable entries.
var ErrNoClassNames = errors.New("no class names found")

// ParseClassNames reads a class-name table. It accepts the mapping format stored
// in exported model metadata ("{0: 'person', 1: 'bicycle'}"), a YAML sequence,
// or a YAML document with a top-level "names" key holding either form.
func ParseClassNames(doc string) (map[int]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		return nil, fmt.Errorf("failed to parse class names: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, ErrNoClassNames
	}

	node := root.Content[0]
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "names" {
				node = node.Content[i+1]
				break
			}
		}
	}

	names := make(map[int]string)
	switch node.Kind {
	case yaml.SequenceNode:
		for i, item := range node.Content {
			names[i] = item.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			id, err := strconv.Atoi(node.Content[i].Value)
			if err != nil {
				return nil, fmt.Errorf("class id %q is not an integer", node.Content[i].Value)
			}
			names[id] = node.Content[i+1].Value
		}
	}

	if len(names) == 0 {
		return nil, ErrNoClassNames
	}
	return names, nil
}

// LoadClassNames resolves the class-name table for the model at modelPath.
// A "<model>.yaml" sidecar wins; otherwise a detector with 80 classes gets the
// COCO table. An empty map is returned when neither applies.
func LoadClassNames(modelPath string, numClasses int) (map[int]string, error) {
	sidecar := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".yaml"
	data, err := os.ReadFile(sidecar)
	switch {
	case err == nil:
		return ParseClassNames(string(data))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", sidecar, err)
	}

	if numClasses == len(cocoClasses) {
		return COCONames(), nil
	}
	return map[int]string{}, nil
}

// COCONames returns a fresh copy of the 80-class COCO table.
func COCONames() map[int]string {
	names := make(map[int]string, len(cocoClasses))
	for i, n := range cocoClasses {
		names[i] = n
	}
	return names
}

var cocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone",
	"microwave", "oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors",
	"teddy bear", "hair drier", "toothbrush",
}
