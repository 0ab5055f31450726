package models

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

type mtlMaterial struct {
	Material
	texture string // map_Kd reference, relative to the library
}

// ParseMTL parses a Wavefront material library. Only the diffuse colour,
// dissolve and diffuse map are used.
func ParseMTL(data []byte) ([]mtlMaterial, error) {
	var (
		out []mtlMaterial
		cur *mtlMaterial
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])

		if key == "newmtl" {
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: newmtl needs a name", lineNum)
			}
			out = append(out, mtlMaterial{Material: DefaultMaterial()})
			cur = &out[len(out)-1]
			cur.Name = strings.Join(fields[1:], " ")
			continue
		}
		if cur == nil {
			continue
		}

		switch key {
		case "kd":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: Kd needs r g b", lineNum)
			}
			for i := range 3 {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid Kd: %w", lineNum, err)
				}
				cur.BaseColor[i] = v
			}
		case "d":
			if len(fields) > 1 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					cur.BaseColor[3] = v
				}
			}
		case "tr":
			if len(fields) > 1 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					cur.BaseColor[3] = 1 - v
				}
			}
		case "ns":
			// Phong exponent 0..1000 mapped onto roughness.
			if len(fields) > 1 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					cur.Roughness = 1 - min(max(v, 0), 1000)/1000
				}
			}
		case "map_kd":
			// Options such as -s 1 1 1 precede the file name.
			if len(fields) > 1 {
				cur.texture = fields[len(fields)-1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mtl: %w", err)
	}
	return out, nil
}
