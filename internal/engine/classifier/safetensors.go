package classifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// tensor is one decoded safetensors entry, widened to float64.
type tensor struct {
	shape []int
	data  []float64
}

// readSafetensors parses a safetensors file: an 8-byte LE header length, a
// JSON header, then the raw little-endian tensor bytes. Only F32 and F64
// tensors are decoded. The optional __metadata__ map is returned as-is.
func readSafetensors(path string) (map[string]tensor, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("file too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data))-8 < headerLen {
		return nil, nil, fmt.Errorf("header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var metadata map[string]string
	if raw, ok := header["__metadata__"]; ok {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to parse __metadata__: %w", err)
		}
		delete(header, "__metadata__")
	}

	body := data[8+headerLen:]
	tensors := make(map[string]tensor, len(header))
	for name, raw := range header {
		var meta struct {
			Dtype       string `json:"dtype"`
			Shape       []int  `json:"shape"`
			DataOffsets [2]int `json:"data_offsets"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, nil, fmt.Errorf("tensor %q: failed to parse metadata: %w", name, err)
		}

		var width int
		switch meta.Dtype {
		case "F32":
			width = 4
		case "F64":
			width = 8
		default:
			return nil, nil, fmt.Errorf("tensor %q: unsupported dtype %s", name, meta.Dtype)
		}

		n := 1
		for _, d := range meta.Shape {
			if d < 0 {
				return nil, nil, fmt.Errorf("tensor %q: negative dimension in shape %v", name, meta.Shape)
			}
			n *= d
		}

		start, end := meta.DataOffsets[0], meta.DataOffsets[1]
		if start < 0 || end < start || end > len(body) {
			return nil, nil, fmt.Errorf("tensor %q: data range [%d:%d] exceeds file size %d",
				name, start, end, len(body))
		}
		if end-start != n*width {
			return nil, nil, fmt.Errorf("tensor %q: data size %d doesn't match shape %v", name, end-start, meta.Shape)
		}

		values := make([]float64, n)
		buf := body[start:end]
		for i := range values {
			if width == 4 {
				values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
			} else {
				values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
			}
		}
		tensors[name] = tensor{shape: meta.Shape, data: values}
	}

	return tensors, metadata, nil
}
